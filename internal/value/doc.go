package value

// File layout: value.go defines Value and its Kind tagged-union,
// arithmetic.go the numeric coercion and Merge rules, json.go the JSON and
// JSONPath projections, secret.go the zeroizing Secret wrapper, and
// bounded.go the runtime-bounded collection variants.
