package config

import (
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/avclean/pointcloud"
	rutils "go.viam.com/avclean/utils"
)

// FilterType names a point cloud filter stage.
type FilterType string

// The filter stages that can be declared in a config.
const (
	StatisticalOutlierFilter = FilterType("statistical_outlier")
	RadiusOutlierFilter      = FilterType("radius_outlier")
	VoxelFilter              = FilterType("voxel")
	GroundFilter             = FilterType("ground")
)

// FilterConfig is one filter stage. Attributes are decoded into the stage's own config type.
type FilterConfig struct {
	Type       FilterType          `json:"type"`
	Attributes rutils.AttributeMap `json:"attributes,omitempty"`
}

// StatisticalOutlierConfig configures statistical outlier removal.
type StatisticalOutlierConfig struct {
	K        int     `json:"k"`
	StdRatio float64 `json:"std_ratio"`
}

// RadiusOutlierConfig configures radius outlier removal.
type RadiusOutlierConfig struct {
	Radius       float64 `json:"radius"`
	MinNeighbors int     `json:"min_neighbors"`
}

// VoxelConfig configures voxel downsampling.
type VoxelConfig struct {
	LeafSize float64 `json:"leaf_size"`
}

// GroundConfig configures RANSAC ground removal. A nil seed uses pointcloud.DefaultGroundSeed.
type GroundConfig struct {
	MaxIterations int     `json:"max_iterations"`
	Threshold     float64 `json:"threshold"`
	Seed          *int64  `json:"seed,omitempty"`
}

// SeedOrDefault returns the configured seed or pointcloud.DefaultGroundSeed.
func (gc *GroundConfig) SeedOrDefault() int64 {
	if gc.Seed == nil {
		return pointcloud.DefaultGroundSeed
	}
	return *gc.Seed
}

// RegisteredFilterSchemas maps each filter type to the schema of its attributes.
var RegisteredFilterSchemas = map[FilterType]*jsonschema.Schema{
	StatisticalOutlierFilter: jsonschema.Reflect(&StatisticalOutlierConfig{}),
	RadiusOutlierFilter:      jsonschema.Reflect(&RadiusOutlierConfig{}),
	VoxelFilter:              jsonschema.Reflect(&VoxelConfig{}),
	GroundFilter:             jsonschema.Reflect(&GroundConfig{}),
}

// Validate ensures all parts of the config are valid.
func (fc *FilterConfig) Validate(path string) error {
	if fc.Type == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "type")
	}
	if _, err := fc.Build(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Build decodes the attributes and returns the filter closure.
func (fc *FilterConfig) Build() (pointcloud.Filter, error) {
	switch fc.Type {
	case StatisticalOutlierFilter:
		conf, err := decode[StatisticalOutlierConfig](fc)
		if err != nil {
			return nil, err
		}
		return pointcloud.StatisticalOutlierFilter(conf.K, conf.StdRatio)
	case RadiusOutlierFilter:
		conf, err := decode[RadiusOutlierConfig](fc)
		if err != nil {
			return nil, err
		}
		return pointcloud.RadiusOutlierFilter(conf.Radius, conf.MinNeighbors)
	case VoxelFilter:
		conf, err := decode[VoxelConfig](fc)
		if err != nil {
			return nil, err
		}
		return pointcloud.VoxelFilter(conf.LeafSize)
	case GroundFilter:
		conf, err := decode[GroundConfig](fc)
		if err != nil {
			return nil, err
		}
		return pointcloud.GroundRemovalFilter(conf.MaxIterations, conf.Threshold, conf.SeedOrDefault())
	default:
		return nil, rutils.NewConfigurationError("type", fc.Type, "unknown filter type")
	}
}

// Ground returns the decoded ground settings of a ground stage.
func (fc *FilterConfig) Ground() (*GroundConfig, error) {
	if fc.Type != GroundFilter {
		return nil, rutils.NewConfigurationError("type", fc.Type, "not a ground stage")
	}
	conf, err := decode[GroundConfig](fc)
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

func decode[T any](fc *FilterConfig) (T, error) {
	conf, err := rutils.TransformAttributeMap[T](fc.Attributes)
	if err != nil {
		return conf, errors.Wrapf(rutils.ErrConfiguration, "%s attributes: %v", fc.Type, err)
	}
	return conf, nil
}

// BuildFilters returns the declared filter stages in order.
func (c *Config) BuildFilters() ([]pointcloud.Filter, error) {
	filters := make([]pointcloud.Filter, 0, len(c.Filters))
	for i := range c.Filters {
		f, err := c.Filters[i].Build()
		if err != nil {
			return nil, errors.Wrapf(err, "filters.%d", i)
		}
		filters = append(filters, f)
	}
	return filters, nil
}
