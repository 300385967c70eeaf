package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framecore/engine/assets/loaders"
	"github.com/spaghettifunk/framecore/engine/core"
	"github.com/spaghettifunk/framecore/engine/systems"
)

// LoadShaderModule reads a SPIR-V blob from path and creates a shader module from it. On failure
// no module is returned.
func LoadShaderModule(device Device, path string) (vk.ShaderModule, error) {
	code, err := loaders.LoadSPIRV(path)
	if err != nil {
		core.LogError("unable to read shader module: %s", err)
		return vk.NullShaderModule, err
	}
	return NewShaderModule(device, path, code)
}

// NewShaderModule creates a shader module from already decoded SPIR-V words.
func NewShaderModule(device Device, name string, code []uint32) (vk.ShaderModule, error) {
	if len(code) == 0 {
		return vk.NullShaderModule, fmt.Errorf("shader %s: %w", name, core.ErrShaderBlobSize)
	}
	module, err := device.CreateShaderModule(code)
	if err != nil {
		core.LogError("failed to create shader module %s: %s", name, err)
		return vk.NullShaderModule, fmt.Errorf("shader %s: %w", name, err)
	}
	core.LogDebug("shader module %s loaded (%d words)", name, len(code))
	return module, nil
}

// LoadShaderModules loads every path on the job system workers and returns the modules keyed by
// path. If any path fails, the modules already created are destroyed and none are returned.
func LoadShaderModules(device Device, jobs *systems.JobSystem, paths ...string) (map[string]vk.ShaderModule, error) {
	modules := make([]vk.ShaderModule, len(paths))
	tasks := make([]func() error, len(paths))
	for i, path := range paths {
		i, path := i, path
		tasks[i] = func() error {
			module, err := LoadShaderModule(device, path)
			modules[i] = module
			return err
		}
	}

	if err := jobs.RunAll(tasks...); err != nil {
		for _, module := range modules {
			if module != vk.NullShaderModule {
				device.DestroyShaderModule(module)
			}
		}
		return nil, err
	}

	out := make(map[string]vk.ShaderModule, len(paths))
	for i, path := range paths {
		out[path] = modules[i]
	}
	return out, nil
}
