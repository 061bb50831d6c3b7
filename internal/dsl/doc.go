// Package dsl is the runtime shared by the compiler backends: the function
// table strategies may call, the conversion of market data into cty values,
// the coercion of an expression result into a trading decision, and the
// mapping of HCL diagnostics into model diagnostics.
//
// Strategies are HCL expressions evaluated by hclsyntax against an
// hcl.EvalContext. Every compile builds its own function table through
// Functions, so no two compiled strategies share mutable state.
package dsl
