package mission

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const missionsFileName = "missions.json"

// Catalog holds the loaded mission definitions. It is read-only between
// loads; a failed reload keeps the previous definitions in place.
type Catalog struct {
	mu     sync.RWMutex
	defs   []*Definition
	logger *zap.Logger
}

// NewCatalog creates an empty Catalog.
func NewCatalog(logger *zap.Logger) *Catalog {
	return &Catalog{logger: logger}
}

// LoadFromDir reads missions.json from dataDir. A missing file is seeded by
// copying the bundled default from dataDir/resources/missions.json. On parse
// failure or an empty result the previous catalog is kept.
func (c *Catalog) LoadFromDir(dataDir string) {
	filePath := filepath.Join(dataDir, missionsFileName)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		resourcePath := filepath.Join(dataDir, "resources", missionsFileName)
		data, err := os.ReadFile(resourcePath)
		if err != nil {
			c.logger.Error("missions.json not found and no bundled default",
				zap.String("path", filePath), zap.Error(err))
			return
		}
		if err := os.WriteFile(filePath, data, 0o644); err != nil {
			c.logger.Error("failed to seed missions.json from resources",
				zap.String("path", filePath), zap.Error(err))
			return
		}
		c.logger.Info("copied default missions.json from resources")
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		c.logger.Error("failed to read missions.json", zap.Error(err))
		return
	}

	var loaded []*Definition
	if err := json.Unmarshal(stripComments(raw), &loaded); err != nil {
		c.logger.Error("failed to parse missions.json", zap.Error(err))
		return
	}
	if len(loaded) == 0 {
		c.logger.Error("no missions found in missions.json")
		return
	}

	c.mu.Lock()
	c.defs = loaded
	c.mu.Unlock()

	c.logger.Info("loaded missions from configuration", zap.Int("count", len(loaded)))
}

// All returns the loaded definitions in file order.
func (c *Catalog) All() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Definition(nil), c.defs...)
}

// Count returns the number of loaded definitions.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// ByEvent returns every definition tracking the given event tag.
func (c *Catalog) ByEvent(eventType string) []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Definition
	for _, d := range c.defs {
		if strings.EqualFold(d.Event, eventType) {
			out = append(out, d)
		}
	}
	return out
}

// AvailableFor returns the definitions a player may be assigned, filtering
// out flag-restricted ones the player lacks permission for.
func (c *Catalog) AvailableFor(hasPermission func(flag string) bool) []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Definition, 0, len(c.defs))
	for _, d := range c.defs {
		if d.Flag == nil || hasPermission(*d.Flag) {
			out = append(out, d)
		}
	}
	return out
}

// stripComments removes // line and /* block */ comments so hand-edited
// mission files may be annotated. String literals are left untouched.
func stripComments(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	for i := 0; i < len(data); i++ {
		ch := data[i]
		if inString {
			out = append(out, ch)
			if ch == '\\' && i+1 < len(data) {
				i++
				out = append(out, data[i])
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch {
		case ch == '"':
			inString = true
			out = append(out, ch)
		case ch == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out = append(out, '\n')
			}
		case ch == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i++ // skip the trailing '/'
		default:
			out = append(out, ch)
		}
	}
	return out
}
