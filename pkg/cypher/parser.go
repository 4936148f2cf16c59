// Recursive-descent parser for the GrandCypher query surface.
//
// Grammar (informal):
//
//	query    := match+ where? return orderBy? skip? limit?
//	match    := MATCH node (edge node)*
//	node     := '(' ident? (':' label ('|' label)*)? props? ')'
//	edge     := '<-' body? '-'            (incoming)
//	          | '-' body? '->'            (outgoing)
//	          | '-' body? '-'             (either)
//	body     := '[' ident? (':' label ('|' label)*)? hops? props? ']'
//	hops     := '*' int? ('..' int?)?
//	where    := WHERE expr
//	return   := RETURN DISTINCT? item (',' item)*
//	item     := expr (AS ident)?
//	orderBy  := ORDER BY expr (ASC|DESC)? (',' expr (ASC|DESC)?)*
//
// Expression precedence, loosest first: OR, AND, NOT, comparison
// (= <> < <= > >= IN CONTAINS STARTS WITH ENDS WITH, IS [NOT] NULL),
// additive, multiplicative, unary minus, primary.
//
// Arrows are composed from single '<', '-', '>' tokens only when the
// characters were adjacent in the source, so comparison operators never
// leak into pattern syntax or vice versa.

package cypher

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses Cypher text into a Query AST.
type Parser struct{}

// NewParser creates a new parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses query text. On failure it returns a *ParseError carrying the
// position of the offending token; no partial AST is returned.
func (p *Parser) Parse(src string) (*Query, error) {
	tokens, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	ps := &parseState{src: src, tokens: tokens}
	return ps.parseQuery()
}

type parseState struct {
	src    string
	tokens []token
	pos    int
}

func (p *parseState) cur() token { return p.tokens[p.pos] }

func (p *parseState) peek() token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parseState) advance() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parseState) errHere(format string, args ...any) *ParseError {
	t := p.cur()
	return &ParseError{Line: t.line, Column: t.column, Message: fmt.Sprintf(format, args...)}
}

func (p *parseState) expect(kind tokenKind, what string) (token, error) {
	if p.cur().kind != kind {
		return token{}, p.errHere("expected %s, found %q", what, p.cur().text)
	}
	return p.advance(), nil
}

// keywordIs reports whether t is the given keyword (case-insensitive).
func keywordIs(t token, kw string) bool {
	return t.kind == tokenIdent && strings.EqualFold(t.text, kw)
}

func (p *parseState) acceptKeyword(kw string) bool {
	if keywordIs(p.cur(), kw) {
		p.advance()
		return true
	}
	return false
}

var aggregateFuncs = map[string]bool{
	"COUNT": true, "SUM": true, "MIN": true, "MAX": true, "AVG": true,
}

// reservedWords may not be used as bare variable names.
var reservedWords = map[string]bool{
	"MATCH": true, "WHERE": true, "RETURN": true, "DISTINCT": true,
	"ORDER": true, "BY": true, "SKIP": true, "LIMIT": true, "AS": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true,
	"CONTAINS": true, "STARTS": true, "ENDS": true, "WITH": true,
	"ASC": true, "DESC": true,
}

func (p *parseState) parseQuery() (*Query, error) {
	q := &Query{}

	if !keywordIs(p.cur(), "MATCH") {
		return nil, p.errHere("query must begin with MATCH")
	}
	for keywordIs(p.cur(), "MATCH") {
		p.advance()
		mc, err := p.parseMatchPattern()
		if err != nil {
			return nil, err
		}
		q.Matches = append(q.Matches, mc)
	}

	if p.acceptKeyword("WHERE") {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		q.Where = expr
	}

	if !p.acceptKeyword("RETURN") {
		return nil, p.errHere("expected RETURN")
	}
	ret, err := p.parseReturnClause()
	if err != nil {
		return nil, err
	}
	q.Return = ret

	if keywordIs(p.cur(), "ORDER") {
		p.advance()
		if !p.acceptKeyword("BY") {
			return nil, p.errHere("expected BY after ORDER")
		}
		for {
			item, err := p.parseOrderItem()
			if err != nil {
				return nil, err
			}
			q.OrderBy = append(q.OrderBy, item)
			if p.cur().kind != tokenComma {
				break
			}
			p.advance()
		}
	}

	if p.acceptKeyword("SKIP") {
		n, err := p.parseNonNegativeInt("SKIP")
		if err != nil {
			return nil, err
		}
		q.Skip = &n
	}

	if p.acceptKeyword("LIMIT") {
		n, err := p.parseNonNegativeInt("LIMIT")
		if err != nil {
			return nil, err
		}
		q.Limit = &n
	}

	if p.cur().kind != tokenEOF {
		return nil, p.errHere("unexpected %q after end of query", p.cur().text)
	}
	return q, nil
}

func (p *parseState) parseNonNegativeInt(clause string) (int, error) {
	tok, err := p.expect(tokenInt, "a non-negative integer")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok.text)
	if err != nil || n < 0 {
		return 0, p.errHere("%s requires a non-negative integer", clause)
	}
	return n, nil
}

// ========================================
// Pattern parsing
// ========================================

func (p *parseState) parseMatchPattern() (*MatchClause, error) {
	mc := &MatchClause{}

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	mc.Nodes = append(mc.Nodes, node)

	for p.edgeAhead() {
		edge, err := p.parseEdgePattern()
		if err != nil {
			return nil, err
		}
		next, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		mc.Edges = append(mc.Edges, edge)
		mc.Nodes = append(mc.Nodes, next)
	}
	return mc, nil
}

// edgeAhead reports whether the upcoming tokens begin an edge pattern:
// a dash, or '<' immediately followed by '-'.
func (p *parseState) edgeAhead() bool {
	if p.cur().kind == tokenMinus {
		return true
	}
	return p.cur().kind == tokenLt && p.peek().kind == tokenMinus && p.peek().adjacentTo(p.cur())
}

func (p *parseState) parseNodePattern() (NodePattern, error) {
	var np NodePattern
	if _, err := p.expect(tokenLParen, "'('"); err != nil {
		return np, err
	}

	if p.cur().kind == tokenIdent && !reservedWords[strings.ToUpper(p.cur().text)] {
		np.Variable = p.advance().text
	}

	if p.cur().kind == tokenColon {
		p.advance()
		dnf, err := p.parseLabelAlternatives()
		if err != nil {
			return np, err
		}
		np.Labels = dnf
	}

	if p.cur().kind == tokenLBrace {
		props, err := p.parsePropertyMap()
		if err != nil {
			return np, err
		}
		np.Properties = props
	}

	if _, err := p.expect(tokenRParen, "')'"); err != nil {
		return np, err
	}
	return np, nil
}

func (p *parseState) parseLabelAlternatives() (LabelDNF, error) {
	var dnf LabelDNF
	tok, err := p.expect(tokenIdent, "a label")
	if err != nil {
		return nil, err
	}
	dnf = append(dnf, []string{tok.text})
	for p.cur().kind == tokenPipe {
		p.advance()
		tok, err := p.expect(tokenIdent, "a label after '|'")
		if err != nil {
			return nil, err
		}
		dnf = append(dnf, []string{tok.text})
	}
	return dnf, nil
}

func (p *parseState) parsePropertyMap() (map[string]any, error) {
	if _, err := p.expect(tokenLBrace, "'{'"); err != nil {
		return nil, err
	}
	props := make(map[string]any)
	if p.cur().kind == tokenRBrace {
		p.advance()
		return props, nil
	}
	for {
		keyTok, err := p.expect(tokenIdent, "a property name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenColon, "':' after property name"); err != nil {
			return nil, err
		}
		value, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		props[keyTok.text] = value

		if p.cur().kind == tokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokenRBrace, "'}'"); err != nil {
		return nil, err
	}
	return props, nil
}

// parseLiteralValue parses the literal values allowed in property maps:
// numbers (optionally negated), strings, booleans, null, and lists thereof.
func (p *parseState) parseLiteralValue() (any, error) {
	switch t := p.cur(); {
	case t.kind == tokenMinus:
		p.advance()
		inner, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		switch v := inner.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
		return nil, p.errHere("'-' requires a numeric literal")
	case t.kind == tokenInt:
		p.advance()
		n, _ := strconv.ParseInt(t.text, 10, 64)
		return n, nil
	case t.kind == tokenFloat:
		p.advance()
		f, _ := strconv.ParseFloat(t.text, 64)
		return f, nil
	case t.kind == tokenString:
		p.advance()
		return t.text, nil
	case keywordIs(t, "true"):
		p.advance()
		return true, nil
	case keywordIs(t, "false"):
		p.advance()
		return false, nil
	case keywordIs(t, "null"):
		p.advance()
		return nil, nil
	case t.kind == tokenLBracket:
		p.advance()
		elems := []any{}
		if p.cur().kind != tokenRBracket {
			for {
				el, err := p.parseLiteralValue()
				if err != nil {
					return nil, err
				}
				elems = append(elems, el)
				if p.cur().kind != tokenComma {
					break
				}
				p.advance()
			}
		}
		if _, err := p.expect(tokenRBracket, "']'"); err != nil {
			return nil, err
		}
		return elems, nil
	}
	return nil, p.errHere("expected a literal value, found %q", p.cur().text)
}

func (p *parseState) parseEdgePattern() (EdgePattern, error) {
	ep := EdgePattern{Direction: EdgeBoth, MinHops: 1, MaxHops: 1}

	incoming := false
	if p.cur().kind == tokenLt {
		// '<' '-' composed into a left arrow (adjacency checked by edgeAhead).
		p.advance()
		if _, err := p.expect(tokenMinus, "'-' after '<'"); err != nil {
			return ep, err
		}
		incoming = true
	} else if _, err := p.expect(tokenMinus, "'-'"); err != nil {
		return ep, err
	}

	if p.cur().kind == tokenLBracket {
		if err := p.parseEdgeBody(&ep); err != nil {
			return ep, err
		}
	}

	// Closing side.
	closing, err := p.expect(tokenMinus, "'-' closing the edge pattern")
	if err != nil {
		return ep, err
	}
	if incoming {
		ep.Direction = EdgeIncoming
		if p.cur().kind == tokenGt && p.cur().adjacentTo(closing) {
			return ep, p.errHere("edge pattern cannot point both ways")
		}
		return ep, nil
	}
	if p.cur().kind == tokenGt && p.cur().adjacentTo(closing) {
		p.advance()
		ep.Direction = EdgeOutgoing
	}
	return ep, nil
}

func (p *parseState) parseEdgeBody(ep *EdgePattern) error {
	if _, err := p.expect(tokenLBracket, "'['"); err != nil {
		return err
	}

	if p.cur().kind == tokenIdent && !reservedWords[strings.ToUpper(p.cur().text)] {
		ep.Variable = p.advance().text
	}

	if p.cur().kind == tokenColon {
		p.advance()
		dnf, err := p.parseLabelAlternatives()
		if err != nil {
			return err
		}
		ep.Labels = dnf
	}

	if p.cur().kind == tokenStar {
		p.advance()
		ep.VarLength = true
		ep.MinHops, ep.MaxHops = 1, -1
		if p.cur().kind == tokenInt {
			n, _ := strconv.Atoi(p.advance().text)
			ep.MinHops, ep.MaxHops = n, n
		}
		if p.cur().kind == tokenDotDot {
			p.advance()
			ep.MaxHops = -1
			if p.cur().kind == tokenInt {
				m, _ := strconv.Atoi(p.advance().text)
				ep.MaxHops = m
			}
		}
		if ep.MinHops < 0 || (ep.MaxHops >= 0 && ep.MaxHops < ep.MinHops) {
			return p.errHere("invalid hop range")
		}
	}

	if p.cur().kind == tokenLBrace {
		props, err := p.parsePropertyMap()
		if err != nil {
			return err
		}
		ep.Properties = props
	}

	_, err := p.expect(tokenRBracket, "']'")
	return err
}

// ========================================
// RETURN / ORDER BY
// ========================================

func (p *parseState) parseReturnClause() (*ReturnClause, error) {
	ret := &ReturnClause{}
	if p.acceptKeyword("DISTINCT") {
		ret.Distinct = true
	}
	for {
		start := p.cur().offset
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		item := ReturnItem{
			Expression: expr,
			Text:       strings.TrimSpace(p.src[start:p.cur().offset]),
		}
		if p.acceptKeyword("AS") {
			aliasTok, err := p.expect(tokenIdent, "an alias after AS")
			if err != nil {
				return nil, err
			}
			item.Alias = aliasTok.text
		}
		ret.Items = append(ret.Items, item)

		if p.cur().kind != tokenComma {
			break
		}
		p.advance()
	}
	return ret, nil
}

func (p *parseState) parseOrderItem() (OrderItem, error) {
	start := p.cur().offset
	expr, err := p.parseExpression()
	if err != nil {
		return OrderItem{}, err
	}
	end := p.cur().offset
	item := OrderItem{
		Expression: expr,
		Text:       strings.TrimSpace(p.src[start:end]),
	}
	if p.acceptKeyword("DESC") {
		item.Descending = true
	} else {
		p.acceptKeyword("ASC")
	}
	return item, nil
}

// ========================================
// Expressions
// ========================================

func (p *parseState) parseExpression() (Expression, error) {
	return p.parseOr()
}

func (p *parseState) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BoolExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parseState) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BoolExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parseState) parseNot() (Expression, error) {
	if p.acceptKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parseState) parseComparison() (Expression, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}

	switch t := p.cur(); {
	case t.kind == tokenEq:
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Operator: "=", Right: right}, nil
	case t.kind == tokenNeq:
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Operator: "<>", Right: right}, nil
	case t.kind == tokenLt, t.kind == tokenLte, t.kind == tokenGt, t.kind == tokenGte:
		op := map[tokenKind]string{
			tokenLt: "<", tokenLte: "<=", tokenGt: ">", tokenGte: ">=",
		}[t.kind]
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Operator: op, Right: right}, nil
	case keywordIs(t, "IN"):
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Operator: "IN", Right: right}, nil
	case keywordIs(t, "CONTAINS"):
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Operator: "CONTAINS", Right: right}, nil
	case keywordIs(t, "STARTS"), keywordIs(t, "ENDS"):
		op := strings.ToUpper(t.text)
		p.advance()
		if !p.acceptKeyword("WITH") {
			return nil, p.errHere("expected WITH after %s", op)
		}
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Operator: op + " WITH", Right: right}, nil
	case keywordIs(t, "IS"):
		p.advance()
		negated := p.acceptKeyword("NOT")
		if !p.acceptKeyword("NULL") {
			return nil, p.errHere("expected NULL after IS")
		}
		return &IsNull{Operand: left, Negated: negated}, nil
	}
	return left, nil
}

func (p *parseState) parseAddSub() (Expression, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().kind {
		case tokenPlus:
			p.advance()
			right, err := p.parseMulDiv()
			if err != nil {
				return nil, err
			}
			left = &Arithmetic{Op: "+", Left: left, Right: right}
		case tokenMinus:
			p.advance()
			right, err := p.parseMulDiv()
			if err != nil {
				return nil, err
			}
			left = &Arithmetic{Op: "-", Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *parseState) parseMulDiv() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().kind {
		case tokenStar:
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &Arithmetic{Op: "*", Left: left, Right: right}
		case tokenSlash:
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &Arithmetic{Op: "/", Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *parseState) parseUnary() (Expression, error) {
	if p.cur().kind == tokenMinus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold negation into numeric literals so -1 stays an integer.
		if lit, ok := operand.(*Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &Literal{Value: -v}, nil
			case float64:
				return &Literal{Value: -v}, nil
			}
		}
		return &Negate{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parseState) parsePrimary() (Expression, error) {
	switch t := p.cur(); {
	case t.kind == tokenLParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case t.kind == tokenInt:
		p.advance()
		n, _ := strconv.ParseInt(t.text, 10, 64)
		return &Literal{Value: n}, nil

	case t.kind == tokenFloat:
		p.advance()
		f, _ := strconv.ParseFloat(t.text, 64)
		return &Literal{Value: f}, nil

	case t.kind == tokenString:
		p.advance()
		return &Literal{Value: t.text}, nil

	case t.kind == tokenLBracket:
		p.advance()
		list := &ListLiteral{}
		if p.cur().kind != tokenRBracket {
			for {
				el, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				list.Elements = append(list.Elements, el)
				if p.cur().kind != tokenComma {
					break
				}
				p.advance()
			}
		}
		if _, err := p.expect(tokenRBracket, "']'"); err != nil {
			return nil, err
		}
		return list, nil

	case keywordIs(t, "true"):
		p.advance()
		return &Literal{Value: true}, nil
	case keywordIs(t, "false"):
		p.advance()
		return &Literal{Value: false}, nil
	case keywordIs(t, "null"):
		p.advance()
		return &Literal{Value: nil}, nil

	case t.kind == tokenIdent && aggregateFuncs[strings.ToUpper(t.text)] && p.peek().kind == tokenLParen:
		return p.parseAggregateCall()

	case t.kind == tokenIdent:
		if reservedWords[strings.ToUpper(t.text)] {
			return nil, p.errHere("unexpected keyword %q in expression", t.text)
		}
		p.advance()
		if p.cur().kind == tokenDot {
			p.advance()
			propTok, err := p.expect(tokenIdent, "a property name after '.'")
			if err != nil {
				return nil, err
			}
			return &PropertyAccess{Variable: t.text, Property: propTok.text}, nil
		}
		return &VariableRef{Name: t.text}, nil
	}
	return nil, p.errHere("unexpected %q in expression", p.cur().text)
}

func (p *parseState) parseAggregateCall() (Expression, error) {
	fnTok := p.advance()
	fn := strings.ToUpper(fnTok.text)
	if _, err := p.expect(tokenLParen, "'('"); err != nil {
		return nil, err
	}

	call := &AggregateCall{Func: fn}
	if p.cur().kind == tokenStar {
		if fn != "COUNT" {
			return nil, p.errHere("only COUNT accepts '*'")
		}
		p.advance()
		call.Star = true
	} else {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if hasAggregate(arg) {
			return nil, p.errHere("aggregate calls cannot be nested")
		}
		call.Arg = arg
	}
	if _, err := p.expect(tokenRParen, "')'"); err != nil {
		return nil, err
	}
	return call, nil
}
