package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sentinel/edr/internal/domain"
)

// ZonesFile is the on-disk shape of ShieldConfig.ZonesPath: a declarative
// bundle of zones and the ACLs they reference, loaded once at startup.
type ZonesFile struct {
	Zones []domain.Zone `yaml:"zones"`
	ACLs  []domain.ACL  `yaml:"acls"`
}

// LoadZonesFile parses path into a ZonesFile. An empty path is not an
// error; callers should treat it as "no bootstrap data" and skip loading.
func LoadZonesFile(path string) (ZonesFile, error) {
	var f ZonesFile
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config: read zones file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config: parse zones file %q: %w", path, err)
	}
	return f, nil
}
