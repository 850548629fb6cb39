package accesstypes

// ResourceAccess is one resource kind's tags from the YAML file
type ResourceAccess struct {
	Kind  string `yaml:"kind"`
	Read  string `yaml:"read"`
	Write string `yaml:"write"`
}

// File is the top-level document of access_types.yaml
type File struct {
	Resources []ResourceAccess `yaml:"resources"`
}
