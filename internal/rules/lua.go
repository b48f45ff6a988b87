package rules

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eliyamlevy/MAOnline/engine"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// EffectFunc is the global the script must define:
//
//	function effect(suit, value) return "skip" end
//
// suit is "Hearts".."Spades", value is "A","2".."10","J","Q","K".
const EffectFunc = "effect"

// DefaultCallTimeout bounds one effect() call. A script still running at the
// deadline is aborted and the card resolves to EffectNone.
const DefaultCallTimeout = 100 * time.Millisecond

// LuaResolver resolves effects by calling a Lua function.
// One interpreter is shared by every game, so calls are serialized.
type LuaResolver struct {
	mu      sync.Mutex
	L       *lua.LState
	fn      lua.LValue
	timeout time.Duration
	log     *logrus.Entry
}

// NewLuaResolver compiles src and checks that it defines EffectFunc.
func NewLuaResolver(src string) (*LuaResolver, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("load rules script: %w", err)
	}
	fn := L.GetGlobal(EffectFunc)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("rules script does not define function %q", EffectFunc)
	}
	return &LuaResolver{
		L:       L,
		fn:      fn,
		timeout: DefaultCallTimeout,
		log:     logrus.WithField("component", "lua_rules"),
	}, nil
}

// SetTimeout changes the per-call deadline. Non-positive values restore the default.
func (r *LuaResolver) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// LoadLuaResolver reads a script file and compiles it.
func LoadLuaResolver(path string) (*LuaResolver, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules script: %w", err)
	}
	return NewLuaResolver(string(src))
}

// Resolve implements EffectResolver. Script errors, calls that overrun the
// timeout and unknown effect names resolve to EffectNone.
func (r *LuaResolver) Resolve(c engine.Card) Effect {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	err := r.L.CallByParam(lua.P{Fn: r.fn, NRet: 1, Protect: true},
		lua.LString(c.Suit().String()), lua.LString(c.Rank().String()))
	if err != nil {
		r.log.WithError(err).Warnf("effect() failed for %s", c)
		return EffectNone
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)

	s, ok := ret.(lua.LString)
	if !ok {
		if ret != lua.LNil {
			r.log.Warnf("effect() returned %s for %s, want string", ret.Type(), c)
		}
		return EffectNone
	}
	e := Effect(s)
	if !e.Valid() {
		r.log.Warnf("effect() returned unknown effect %q for %s", string(s), c)
		return EffectNone
	}
	return e
}

// Close releases the interpreter.
func (r *LuaResolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}
