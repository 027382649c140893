package app

import (
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/modules/detectionfilter"
	"github.com/specialistvlad/gridflow/modules/printsink"
	"github.com/specialistvlad/gridflow/modules/sizeclassifier"
)

// coreModules is the definitive list of all block modules that are compiled
// into the gridflow binary.
var coreModules = []registry.Module{
	&detectionfilter.Module{},
	&printsink.Module{},
	&sizeclassifier.Module{},
}
