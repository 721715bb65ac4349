package classes

import (
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/typesystem"
)

func init() {
	evaluator.Register(&evaluator.Builtin{
		Name: "construct", MinArgs: 1, MaxArgs: 2,
		Return: func([]typesystem.Type) typesystem.Type { return typesystem.Object },
		Fn:     builtinConstruct,
	})
	evaluator.Register(&evaluator.Builtin{
		Name: "deep_clone", MinArgs: 1, MaxArgs: 1,
		Return: func(args []typesystem.Type) typesystem.Type {
			if len(args) == 0 || args[0] == nil {
				return typesystem.Any
			}
			return args[0]
		},
		Fn: func(c *evaluator.CallContext) evaluator.Object { return DeepClone(c.Arg(0)) },
	})
}

func builtinConstruct(c *evaluator.CallContext) evaluator.Object {
	name, ok := c.Arg(0).(*evaluator.String)
	if !ok {
		return c.Errorf("class name must be a string, got %s", evaluator.TypeName(c.Arg(0)))
	}
	r := defaultRegistry
	if r == nil {
		return c.Errorf("no class registry")
	}
	if !r.Exists(name.Value) {
		return c.Errorf("unknown class %s", name.Value)
	}
	args := c.Arg(1)
	if _, isMap := args.(*evaluator.Map); !isMap && args != evaluator.NULL {
		return c.Errorf("constructor arguments must be a map, got %s", evaluator.TypeName(args))
	}
	return r.Create(name.Value, args)
}
