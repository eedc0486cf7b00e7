package mql

import "strings"

// Stage-sequence extraction produces the ordered, non-deduplicated list
// of operator tokens a query uses. Order matters downstream: two
// queries match only when their token sequences are identical.

// comparison operators probed inside $expr, in the engine's fixed
// canonical order.
var exprComparisons = []string{"$eq", "$gt", "$gte", "$lt", "$lte", "$ne", "$not"}

// ExtractStages returns the ordered operator tokens for a parsed query,
// including refinement tokens (not/regex/expr and comparison names
// inside match) and the flattened tokens of lookup sub-pipelines.
func ExtractStages(q *Query) []string {
	if q == nil {
		return nil
	}
	var tokens []string
	for _, st := range q.Stages {
		tokens = appendStageTokens(tokens, st)
	}
	return tokens
}

func appendStageTokens(tokens []string, st Stage) []string {
	if st.Op == "" {
		return tokens
	}
	tokens = append(tokens, st.Op)

	switch st.Op {
	case "match":
		tokens = appendMatchRefinements(tokens, st.Body)
	case "lookup":
		tokens = appendLookupPipeline(tokens, st.Body)
	}
	return tokens
}

// appendMatchRefinements adds negation/regex/expr tokens for a match
// payload. Negation takes priority over regex because $not commonly
// wraps $regex; the two tokens are mutually exclusive.
func appendMatchRefinements(tokens []string, body Value) []string {
	hasNot := containsOperator(body, "$not")
	switch {
	case hasNot:
		tokens = append(tokens, "not")
	case containsRegex(body):
		tokens = append(tokens, "regex")
	}

	if expr, ok := lookupOperator(body, "$expr"); ok {
		tokens = append(tokens, "expr")
		for _, op := range exprComparisons {
			if containsOperator(expr, op) {
				tokens = append(tokens, strings.TrimPrefix(op, "$"))
			}
		}
	}
	return tokens
}

// appendLookupPipeline flattens a correlated sub-pipeline's stage
// tokens after the lookup token, in encounter order.
func appendLookupPipeline(tokens []string, body Value) []string {
	obj, ok := body.(*Object)
	if !ok {
		return tokens
	}
	pipe, ok := obj.Get("pipeline")
	if !ok {
		return tokens
	}
	arr, ok := pipe.(*Array)
	if !ok {
		return tokens
	}
	for _, st := range subStages(arr) {
		tokens = appendStageTokens(tokens, st)
	}
	return tokens
}

// containsOperator reports whether the operator key occurs anywhere in
// the value tree.
func containsOperator(v Value, op string) bool {
	switch t := v.(type) {
	case *Object:
		for _, m := range t.Members {
			if m.Key == op || containsOperator(m.Value, op) {
				return true
			}
		}
	case *Array:
		for _, e := range t.Elements {
			if containsOperator(e, op) {
				return true
			}
		}
	}
	return false
}

// containsRegex reports whether a $regex operator or a slash-delimited
// pattern literal occurs anywhere in the value tree.
func containsRegex(v Value) bool {
	switch t := v.(type) {
	case *Object:
		for _, m := range t.Members {
			if m.Key == "$regex" || containsRegex(m.Value) {
				return true
			}
		}
	case *Array:
		for _, e := range t.Elements {
			if containsRegex(e) {
				return true
			}
		}
	case *Scalar:
		return t.Kind == ScalarRegex
	}
	return false
}

// lookupOperator finds the first occurrence of an operator key anywhere
// in the value tree and returns its payload.
func lookupOperator(v Value, op string) (Value, bool) {
	switch t := v.(type) {
	case *Object:
		for _, m := range t.Members {
			if m.Key == op {
				return m.Value, true
			}
			if sub, ok := lookupOperator(m.Value, op); ok {
				return sub, true
			}
		}
	case *Array:
		for _, e := range t.Elements {
			if sub, ok := lookupOperator(e, op); ok {
				return sub, true
			}
		}
	}
	return nil, false
}
