package infrastructure

import (
	"fmt"
	"sync"

	"akwa/internal/service/inventory/domain"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// CelRuleEngine 用 CEL 表达式对数量快照求值。
// 表达式里可引用 itemId / profileId / total / available / reserved，
// 例如 "available == 0" 或 "available * 100 < total * 10"。
// 编译结果按表达式缓存，求值路径上不重复编译。
type CelRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCelRuleEngine 创建规则引擎并声明可用变量
func NewCelRuleEngine() (*CelRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("itemId", cel.StringType),
		cel.Variable("profileId", cel.StringType),
		cel.Variable("total", cel.IntType),
		cel.Variable("available", cel.IntType),
		cel.Variable("reserved", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}
	return &CelRuleEngine{env: env, programs: make(map[string]cel.Program)}, nil
}

// Evaluate 实现 port.RuleEngine
func (e *CelRuleEngine) Evaluate(expr string, fact domain.QuantityFact) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"itemId":    fact.ItemID,
		"profileId": fact.ProfileID,
		"total":     fact.Total,
		"available": fact.Available,
		"reserved":  fact.Reserved,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rule %q: %w", expr, err)
	}
	hit, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("rule %q did not evaluate to bool", expr)
	}
	return bool(hit), nil
}

func (e *CelRuleEngine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %q: %w", expr, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule program %q: %w", expr, err)
	}

	e.mu.Lock()
	e.programs[expr] = prg
	e.mu.Unlock()
	return prg, nil
}
