// Package condition evaluates trigger condition expressions against a
// layout model.
//
// The language is deliberately small: boolean or/and/not, Python-style
// chained comparisons, arithmetic, string and list literals, a handful
// of scope variables (hour, minute, time, objType, objID, obj), and a
// fixed helper library of layout state checks such as is_occupied and
// speed_above. Identifiers outside that surface do not resolve, so a
// condition string can never reach arbitrary code or attributes.
//
// Evaluation is fail-closed: any lexing, parsing or runtime error makes
// the condition false, with the error returned for logging.
package condition
