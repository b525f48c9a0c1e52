package content

import _ "embed"

//go:embed blocks.yaml
var defaultBlockFixture []byte

// DefaultBlockRegistry loads the block registry this core ships with,
// bundled into the binary rather than read from disk at startup.
func DefaultBlockRegistry() (*BlockRegistry, error) {
	return LoadBlockRegistry(defaultBlockFixture)
}
