package plugins

// BasePlugin provides default no-op implementations of PluginHandler.
// Plugins embed this and only override the hooks they need.
type BasePlugin struct {
	Name string
}

func (p *BasePlugin) Init(ctx *PluginContext) error    { return nil }
func (p *BasePlugin) Start(ctx *PluginContext) error   { return nil }
func (p *BasePlugin) Stop(ctx *PluginContext) error    { return nil }
func (p *BasePlugin) Destroy(ctx *PluginContext) error { return nil }

// builtinPlugins holds compiled-in plugin factories, registered via init()
// the way a native library statically linked into the host binary would
// announce itself instead of shipping as a separate loadable artifact.
var builtinPlugins = make(map[string]PluginFactory)

// RegisterBuiltinPlugin registers a compiled-in plugin factory under name.
func RegisterBuiltinPlugin(name string, factory PluginFactory) {
	builtinPlugins[name] = factory
}

// GetBuiltinPlugin retrieves a compiled-in plugin factory.
func GetBuiltinPlugin(name string) (PluginFactory, bool) {
	f, ok := builtinPlugins[name]
	return f, ok
}

// ListBuiltinPlugins returns the names of every registered compiled-in plugin.
func ListBuiltinPlugins() []string {
	names := make([]string, 0, len(builtinPlugins))
	for name := range builtinPlugins {
		names = append(names, name)
	}
	return names
}
