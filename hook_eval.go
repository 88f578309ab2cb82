package lazyfield

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("lazyfield: evaluator not configured")

// EvaluateHook executes expr against ctx using the set's evaluator. It is the
// same path expression hooks run through, so callers can exercise an
// expression before wiring it to a field.
func (s *FieldSet) EvaluateHook(ctx HookContext, expr string) (any, error) {
	return s.evaluateExpr("eval", ctx, expr)
}

func (s *FieldSet) evaluateExpr(kind string, ctx HookContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	if ctx.Type == "" {
		ctx.Type = s.typeName
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError("", expr, ctx.fieldLabel(), evalErr)
	s.hookLogger().LogHook(HookLogEvent{
		Engine:   engine,
		Kind:     kind,
		Type:     ctx.Type,
		Field:    ctx.Field,
		Expr:     expr,
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// resolveEvaluator memoizes a default expr engine when none was configured.
// NewFieldSet calls it once during construction so later concurrent hook
// evaluations never mutate the config.
func (s *FieldSet) resolveEvaluator() (Evaluator, error) {
	evaluator := s.evaluator()
	if evaluator != nil {
		return evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := s.programCache(); cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := s.functionRegistry(); registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	s.withEvaluator(defaultEvaluator)
	return defaultEvaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*lazyfield.exprEvaluator":
		return "expr"
	case "*lazyfield.celEvaluator":
		return "cel"
	case "*lazyfield.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
