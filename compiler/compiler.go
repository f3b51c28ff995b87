// Package compiler translates a validated doof syntax tree into the
// register bytecode consumed by the doof virtual machine. It performs no
// parsing, type checking, or name resolution of its own: all of that
// arrives pre-computed in a sema.Info, and any gap in that metadata is a
// fatal compile error rather than something to guess around.
package compiler

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
	"github.com/doof-lang/doof/sema"
)

// DefaultVersion is reported in artifact metadata when the build does not
// inject a real version.
const DefaultVersion = "0.1.0-dev"

// Config holds compiler options.
type Config struct {
	// SourceFile is the path recorded in metadata and error messages.
	SourceFile string

	// CompilerVersion overrides the version string stamped into metadata.
	CompilerVersion string

	// Logger receives per-stage trace output. A nil logger disables it.
	Logger *zerolog.Logger

	// Clock supplies the metadata timestamp; defaults to time.Now. Tests
	// pin it for stable output.
	Clock func() time.Time
}

func (c *Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}

// Compiler drives one compilation unit. It is not safe for concurrent use;
// create one per unit.
type Compiler struct {
	cfg  Config
	log  zerolog.Logger
	info *sema.Info
	ctx  *Context

	// entry is the descriptor for the unit's top-level code, always
	// function index 0.
	entry *bytecode.FunctionDesc

	// lambdaQueue holds lambdas encountered during lowering. They are
	// compiled after all declared functions so each body occupies one
	// contiguous bracket of the stream.
	lambdaQueue []*pendingLambda

	// helpers maps synthesized support routine names to their function
	// table index, so each is generated at most once.
	helpers     map[string]int
	helperQueue []string
}

type pendingLambda struct {
	node *ast.Lambda
	meta *sema.LambdaInfo
	desc *bytecode.FunctionDesc
}

// Compile lowers a validated program into a bytecode document.
func Compile(program *ast.Program, info *sema.Info, cfg Config) (*bytecode.Document, error) {
	c := &Compiler{
		cfg:     cfg,
		log:     cfg.logger(),
		info:    info,
		ctx:     newContext(cfg.SourceFile),
		helpers: map[string]int{},
	}
	if err := c.compile(program); err != nil {
		return nil, err
	}
	return c.document(), nil
}

func (c *Compiler) compile(program *ast.Program) error {
	for _, name := range c.info.Globals {
		c.ctx.addGlobal(name)
	}
	c.declare(program)

	c.log.Debug().Int("globals", len(c.info.Globals)).Msg("compiling entry code")
	if err := c.compileEntry(program); err != nil {
		return err
	}
	for _, stmt := range program.Stmts {
		switch s := stmt.(type) {
		case *ast.FuncDecl:
			if err := c.compileFuncDecl(s, ""); err != nil {
				return err
			}
		case *ast.ClassDecl:
			if err := c.compileClassMethods(s); err != nil {
				return err
			}
		}
	}
	if err := c.drainLambdas(); err != nil {
		return err
	}
	if err := c.ctx.resolvePendingJumps(); err != nil {
		return c.located(err, ast.Position{})
	}
	c.log.Debug().
		Int("instructions", len(c.ctx.instructions)).
		Int("constants", len(c.ctx.pool.values)).
		Int("functions", len(c.ctx.functions)).
		Msg("compilation complete")
	return nil
}

// declare registers every function, method, and class before any body is
// lowered, so forward references resolve to stable table indices.
func (c *Compiler) declare(program *ast.Program) {
	c.entry = &bytecode.FunctionDesc{Name: "__main__"}
	c.ctx.addFunction(c.entry)

	for _, stmt := range program.Stmts {
		switch s := stmt.(type) {
		case *ast.FuncDecl:
			desc := &bytecode.FunctionDesc{
				Name:       s.Name,
				Address:    -1,
				ParamCount: len(s.Params),
			}
			c.ctx.funcByName[s.Name] = c.ctx.addFunction(desc)
		case *ast.ClassDecl:
			c.declareClass(s)
		}
	}
	for name, ci := range c.info.Classes {
		if ci.Extern {
			c.declareExternClass(name, ci)
		}
	}
}

func (c *Compiler) declareClass(decl *ast.ClassDecl) {
	ci := c.info.Classes[decl.Name]
	cd := &bytecode.ClassDesc{Name: decl.Name}
	for _, f := range decl.Fields {
		cd.Fields = append(cd.Fields, f.Name)
	}
	for _, m := range decl.Methods {
		static := false
		if ci != nil {
			if mi, ok := ci.Methods[m.Name]; ok {
				static = mi.Static
			}
		}
		desc := &bytecode.FunctionDesc{
			Name:       decl.Name + "." + m.Name,
			Address:    -1,
			ParamCount: len(m.Params),
			HasThis:    !static,
		}
		fi := c.ctx.addFunction(desc)
		c.ctx.funcByName[desc.Name] = fi
		cd.Methods = append(cd.Methods, bytecode.MethodRef{
			Name:          m.Name,
			FunctionIndex: fi,
			Static:        static,
		})
	}
	cd.Index = len(c.ctx.classes)
	c.ctx.classes = append(c.ctx.classes, cd)
	c.ctx.classByName[decl.Name] = cd.Index
}

// declareExternClass records metadata for a class whose methods live in the
// VM's native surface. It contributes a class descriptor but no code.
func (c *Compiler) declareExternClass(name string, ci *sema.ClassInfo) {
	if _, ok := c.ctx.classByName[name]; ok {
		return
	}
	cd := &bytecode.ClassDesc{
		Name:   name,
		Extern: true,
		Fields: append([]string(nil), ci.Fields...),
	}
	for _, mi := range ci.Methods {
		cd.Methods = append(cd.Methods, bytecode.MethodRef{
			Name:          mi.Name,
			FunctionIndex: -1,
			Static:        mi.Static,
		})
	}
	cd.Index = len(c.ctx.classes)
	c.ctx.classes = append(c.ctx.classes, cd)
	c.ctx.classByName[name] = cd.Index
}

// compileEntry lowers the top-level statements. Entry code is function
// index 0, starts at instruction 0, and ends with HALT.
func (c *Compiler) compileEntry(program *ast.Program) error {
	fs, err := c.newFuncState(c.info.Entry, nil, true)
	if err != nil {
		return err
	}
	c.entry.Address = c.ctx.position()
	for _, stmt := range program.Stmts {
		switch stmt.(type) {
		case *ast.FuncDecl, *ast.ClassDecl:
			continue
		}
		if err := fs.stmt(stmt); err != nil {
			return err
		}
	}
	c.ctx.emit(op.Halt, 0, 0, 0)
	c.entry.End = c.ctx.position()
	c.entry.RegisterCount = fs.regs.Used()
	c.ctx.debug.addFunction(c.entry.Name, c.entry.Address, c.entry.End, 0)
	return nil
}

// drainLambdas compiles queued lambdas and synthesized support routines.
// Compiling one lambda may enqueue nested lambdas or new helpers, so this
// loops until both queues are empty.
func (c *Compiler) drainLambdas() error {
	for len(c.lambdaQueue) > 0 || len(c.helperQueue) > 0 {
		if len(c.lambdaQueue) > 0 {
			pl := c.lambdaQueue[0]
			c.lambdaQueue = c.lambdaQueue[1:]
			if err := c.compileLambdaBody(pl); err != nil {
				return err
			}
			continue
		}
		name := c.helperQueue[0]
		c.helperQueue = c.helperQueue[1:]
		if err := c.generateHelper(name); err != nil {
			return err
		}
	}
	return nil
}

// located fills in source location on a compile error that lacks one.
func (c *Compiler) located(err error, pos ast.Position) error {
	ce, ok := err.(*errors.CompileError)
	if !ok {
		return err
	}
	if ce.Filename == "" {
		ce.Filename = c.cfg.SourceFile
	}
	if ce.Line == 0 {
		ce.Line = pos.Line
		ce.Column = pos.Column
	}
	return ce
}

// document serializes the finished unit.
func (c *Compiler) document() *bytecode.Document {
	version := c.cfg.CompilerVersion
	if version == "" {
		version = DefaultVersion
	}
	clock := c.cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	buildID := ""
	if id, err := uuid.NewV4(); err == nil {
		buildID = id.String()
	}

	instructions := make([]bytecode.InstructionDoc, len(c.ctx.instructions))
	for i, inst := range c.ctx.instructions {
		instructions[i] = bytecode.InstructionDoc{
			Opcode:   uint8(inst.Opcode),
			Mnemonic: op.Name(inst.Opcode),
			A:        inst.A,
			B:        inst.B,
			C:        inst.C,
			Comment:  c.annotate(i, inst),
		}
	}
	functions := make([]bytecode.FunctionDesc, len(c.ctx.functions))
	for i, fn := range c.ctx.functions {
		functions[i] = *fn
	}
	classes := make([]bytecode.ClassDesc, len(c.ctx.classes))
	for i, cd := range c.ctx.classes {
		classes[i] = *cd
	}
	return &bytecode.Document{
		Version: bytecode.Version,
		Metadata: bytecode.Metadata{
			SourceFile:      c.cfg.SourceFile,
			GeneratedAt:     clock().UTC().Format(time.RFC3339),
			CompilerVersion: version,
			BuildID:         buildID,
		},
		Constants:    append([]bytecode.Constant(nil), c.ctx.pool.values...),
		Functions:    functions,
		Classes:      classes,
		EntryPoint:   0,
		GlobalCount:  len(c.ctx.globalNames),
		Instructions: instructions,
		Debug:        c.ctx.debug.build(c.ctx.position()),
	}
}

// annotate produces the human-oriented comment carried next to an
// instruction in the serialized artifact.
func (c *Compiler) annotate(idx int, inst bytecode.Instruction) string {
	switch {
	case op.IsJump(inst.Opcode):
		return fmt.Sprintf("-> %d", inst.Target(idx))
	case inst.Opcode == op.LoadConst || inst.Opcode == op.NewObject ||
		inst.Opcode == op.NewLambda || inst.Opcode == op.Call ||
		inst.Opcode == op.CallMethod || inst.Opcode == op.CallStatic ||
		inst.Opcode == op.CallNative || inst.Opcode == op.CallDynamic:
		ci := int(inst.BC())
		if ci < len(c.ctx.pool.values) {
			return c.ctx.pool.values[ci].String()
		}
	case inst.Opcode == op.LoadGlobal || inst.Opcode == op.StoreGlobal:
		gi := int(inst.BC())
		if gi < len(c.ctx.globalNames) {
			return c.ctx.globalNames[gi]
		}
	case inst.Opcode == op.CallIntrinsic:
		return op.Intrinsic(inst.B).String()
	}
	return ""
}
