package app

import (
	"github.com/vk/devfn/internal/registry"
	"github.com/vk/devfn/modules/hello"
)

// coreModules is the definitive list of all modules that are compiled into
// the devfn binary.
var coreModules = []registry.Module{
	&hello.Module{},
}
