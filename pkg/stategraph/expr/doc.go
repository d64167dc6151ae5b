/*
Package expr evaluates boolean expressions over state fields.

Conditional edges can be declared as expressions instead of Go functions:

	graph.AddConditionalEdge("controller",
	    stategraph.Expr("not passed and iterations < max_iterations"),
	    map[string]string{"true": "writer", "false": stategraph.END})

# Syntax

	<or>      := <and> { 'or' <and> }
	<and>     := <unary> { 'and' <unary> }
	<unary>   := ('not' | '!') <unary> | <compare>
	<compare> := <operand> [ <op> <operand> ]
	<op>      := '==' | '!=' | '<' | '<=' | '>' | '>=' | 'contains'
	<operand> := literal | identifier | '(' <or> ')'

Precedence from loosest to tightest: or, and, not, comparison.

Literals are quoted strings ('a' or "a"), numbers, true, false and null.
Identifiers name variables; dotted identifiers (a.b) descend into nested
maps. Unknown identifiers resolve to nil.

# Semantics

Equality compares numbers numerically and everything else by its printed
form. Ordering operators compare numbers numerically and strings
lexically; any other pairing is false. contains tests substrings of
strings and membership of lists. A bare operand is tested for truthiness:
nil, false, zero, empty strings and empty lists are false.
*/
package expr
