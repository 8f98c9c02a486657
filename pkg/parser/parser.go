// Package parser implements a recursive-descent, precedence-climbing parser
// for ssvm source, turning a lexer.Token stream into a pkg/ast tree.
//
// The parser keeps a two-token lookahead window (curTok/peekTok) the same
// way the lexer's consumer always has: curTok is the token being examined,
// peekTok lets a parsing function decide what it is about to see without
// consuming it. Expression parsing uses a Pratt-style precedence table:
// each token that can start an expression registers a prefix parser, and
// each token that can continue one (a binary/logical/range operator, a
// call, a member access, a subscript) registers an infix parser together
// with a binding precedence. parseExpression loops consuming infix
// operators whose precedence exceeds the precedence it was called with.
//
// Errors are accumulated in p.errors rather than aborting at the first one,
// so a single Parse call can report every syntax error found in the file.
package parser

import (
	"fmt"
	"strconv"

	"github.com/ssvm-lang/ssvm/pkg/ast"
	"github.com/ssvm-lang/ssvm/pkg/lexer"
)

// precedence levels, lowest to highest binding power.
const (
	_ int = iota
	precLowest
	precAssign     // = += -= *= /=
	precNilCoalesce // ??
	precOr          // ||
	precAnd         // &&
	precEquality    // == !=
	precComparison  // < > <= >=
	precRange       // ... ..<
	precAdditive    // + -
	precMultiplicative // * / %
	precUnary       // -x !x
	precPostfix     // x() x.y x[i] x! x?.y
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenAssign:       precAssign,
	lexer.TokenPlusAssign:   precAssign,
	lexer.TokenMinusAssign:  precAssign,
	lexer.TokenStarAssign:   precAssign,
	lexer.TokenSlashAssign:  precAssign,
	lexer.TokenNilCoalesce:  precNilCoalesce,
	lexer.TokenOr:           precOr,
	lexer.TokenAnd:          precAnd,
	lexer.TokenEqual:        precEquality,
	lexer.TokenNotEqual:     precEquality,
	lexer.TokenLess:         precComparison,
	lexer.TokenGreater:      precComparison,
	lexer.TokenLessEq:       precComparison,
	lexer.TokenGreaterEq:    precComparison,
	lexer.TokenRange:        precRange,
	lexer.TokenHalfOpen:     precRange,
	lexer.TokenPlus:         precAdditive,
	lexer.TokenMinus:        precAdditive,
	lexer.TokenStar:         precMultiplicative,
	lexer.TokenSlash:        precMultiplicative,
	lexer.TokenPercent:      precMultiplicative,
	lexer.TokenLParen:       precPostfix,
	lexer.TokenLBracket:     precPostfix,
	lexer.TokenDot:          precPostfix,
	lexer.TokenQuestionDot:  precPostfix,
	lexer.TokenBang:         precPostfix,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser turns a token stream into an *ast.Program. It is stateful and
// single-use: construct a new one per source file.
type Parser struct {
	l       *lexer.Lexer
	curTok  lexer.Token
	peekTok lexer.Token
	errors  []string

	prefixFns map[lexer.TokenType]prefixParseFn
	infixFns  map[lexer.TokenType]infixParseFn
}

// New creates a parser over the given source text.
func New(input string) *Parser {
	p := &Parser{l: lexer.New(input)}

	p.prefixFns = map[lexer.TokenType]prefixParseFn{
		lexer.TokenInteger:    p.parseIntegerLiteral,
		lexer.TokenFloat:      p.parseFloatLiteral,
		lexer.TokenString:     p.parseStringLiteral,
		lexer.TokenTrue:       func() ast.Expression { return &ast.BooleanLiteral{Position: p.pos(), Value: true} },
		lexer.TokenFalse:      func() ast.Expression { return &ast.BooleanLiteral{Position: p.pos(), Value: false} },
		lexer.TokenNil:        func() ast.Expression { return &ast.NilLiteral{Position: p.pos()} },
		lexer.TokenIdentifier: p.parseIdentifier,
		lexer.TokenSelf:       func() ast.Expression { return &ast.SelfExpr{Position: p.pos()} },
		lexer.TokenSuper:      p.parseSuper,
		lexer.TokenMinus:      p.parseUnary,
		lexer.TokenBang:       p.parseUnary,
		lexer.TokenLParen:     p.parseParenOrTuple,
		lexer.TokenLBracket:   p.parseArrayOrDictLiteral,
		lexer.TokenLBrace:     p.parseClosureLiteral,
	}

	p.infixFns = map[lexer.TokenType]infixParseFn{
		lexer.TokenPlus:        p.parseBinary,
		lexer.TokenMinus:       p.parseBinary,
		lexer.TokenStar:        p.parseBinary,
		lexer.TokenSlash:       p.parseBinary,
		lexer.TokenPercent:     p.parseBinary,
		lexer.TokenEqual:       p.parseBinary,
		lexer.TokenNotEqual:    p.parseBinary,
		lexer.TokenLess:        p.parseLessOrGenericCall,
		lexer.TokenGreater:     p.parseBinary,
		lexer.TokenLessEq:      p.parseBinary,
		lexer.TokenGreaterEq:   p.parseBinary,
		lexer.TokenAnd:         p.parseLogical,
		lexer.TokenOr:          p.parseLogical,
		lexer.TokenNilCoalesce: p.parseNilCoalesce,
		lexer.TokenRange:       p.parseRange,
		lexer.TokenHalfOpen:    p.parseRange,
		lexer.TokenAssign:      p.parseAssign,
		lexer.TokenLParen:      p.parseCall,
		lexer.TokenDot:         p.parseMember,
		lexer.TokenQuestionDot: p.parseOptionalChain,
		lexer.TokenLBracket:    p.parseSubscript,
		lexer.TokenBang:        p.parseForceUnwrap,
	}

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.l.NextToken()
}

func (p *Parser) pos() ast.Position {
	return ast.Position{Line: p.curTok.Line, Col: p.curTok.Column}
}

func (p *Parser) addError(format string, args ...interface{}) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s", p.curTok.Line, fmt.Sprintf(format, args...)))
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) expectPeek(tt lexer.TokenType) bool {
	if p.peekTok.Type == tt {
		p.nextToken()
		return true
	}
	p.addError("expected next token %s, got %s (%q)", tt, p.peekTok.Type, p.peekTok.Literal)
	return false
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekTok.Type]; ok {
		return pr
	}
	return precLowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curTok.Type]; ok {
		return pr
	}
	return precLowest
}

func (p *Parser) skipSemicolons() {
	for p.curTok.Type == lexer.TokenSemicolon {
		p.nextToken()
	}
}

// Parse parses the whole input into a Program, accumulating errors rather
// than stopping at the first one.
func (p *Parser) Parse() (*ast.Program, error) {
	program := &ast.Program{Position: p.pos()}

	for p.curTok.Type != lexer.TokenEOF {
		p.skipSemicolons()
		if p.curTok.Type == lexer.TokenEOF {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	if len(p.errors) > 0 {
		return program, fmt.Errorf("parser errors: %v", p.errors)
	}
	return program, nil
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curTok.Type {
	case lexer.TokenLet, lexer.TokenVar:
		return p.parseVarDecl()
	case lexer.TokenWeak:
		return p.parseRefDisciplineVarDecl(true, false)
	case lexer.TokenUnowned:
		return p.parseRefDisciplineVarDecl(false, true)
	case lexer.TokenIf:
		return p.parseIfOrIfLet()
	case lexer.TokenGuard:
		return p.parseGuardLet()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenRepeat:
		return p.parseRepeatWhile()
	case lexer.TokenFor:
		return p.parseForIn()
	case lexer.TokenBreak:
		return &ast.BreakStmt{Position: p.pos()}
	case lexer.TokenContinue:
		return &ast.ContinueStmt{Position: p.pos()}
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenThrow:
		return p.parseThrow()
	case lexer.TokenImport:
		return p.parseImport()
	case lexer.TokenFunc:
		return p.parseFunctionDecl(false, false, false, false)
	case lexer.TokenStatic:
		return p.parseStaticMember()
	case lexer.TokenMutating:
		p.nextToken()
		if p.curTok.Type != lexer.TokenFunc {
			p.addError("expected func after mutating")
			return nil
		}
		return p.parseFunctionDecl(false, false, true, false)
	case lexer.TokenOverride:
		p.nextToken()
		if p.curTok.Type != lexer.TokenFunc {
			p.addError("expected func after override")
			return nil
		}
		return p.parseFunctionDecl(false, true, false, false)
	case lexer.TokenInit:
		return p.parseInitDecl()
	case lexer.TokenClass:
		return p.parseClassDecl()
	case lexer.TokenStruct:
		return p.parseStructDecl()
	case lexer.TokenEnum:
		return p.parseEnumDecl()
	case lexer.TokenProtocol:
		return p.parseProtocolDecl()
	case lexer.TokenExtension:
		return p.parseExtensionDecl()
	case lexer.TokenLazy:
		p.nextToken()
		return p.parsePropertyDecl(true)
	default:
		start := p.pos()
		expr := p.parseExpression(precLowest)
		if expr == nil {
			return nil
		}
		return &ast.ExpressionStmt{Position: start, Expr: expr}
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	block := &ast.BlockStmt{Position: p.pos()}
	if !p.expectPeek(lexer.TokenLBrace) {
		return block
	}
	p.nextToken()
	for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
		p.skipSemicolons()
		if p.curTok.Type == lexer.TokenRBrace {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseVarDecl() ast.Statement {
	start := p.pos()
	isLet := p.curTok.Type == lexer.TokenLet
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal

	typeAnnotation := ""
	if p.peekTok.Type == lexer.TokenColon {
		p.nextToken()
		if !p.expectPeek(lexer.TokenIdentifier) {
			return nil
		}
		typeAnnotation = p.curTok.Literal
	}

	var init ast.Expression
	if p.peekTok.Type == lexer.TokenAssign {
		p.nextToken()
		p.nextToken()
		init = p.parseExpression(precLowest)
	}

	return &ast.VarDecl{Position: start, Name: name, IsLet: isLet, TypeAnnotation: typeAnnotation, Init: init}
}

// parseRefDisciplineVarDecl parses a `weak`/`unowned` modifier immediately
// preceding a var/let declaration. p.curTok is the modifier keyword on
// entry.
func (p *Parser) parseRefDisciplineVarDecl(isWeak, isUnowned bool) ast.Statement {
	if p.peekTok.Type != lexer.TokenVar && p.peekTok.Type != lexer.TokenLet {
		p.addError("expected var or let after weak/unowned")
		return nil
	}
	p.nextToken()
	decl := p.parseVarDecl()
	if vd, ok := decl.(*ast.VarDecl); ok {
		vd.IsWeak = isWeak
		vd.IsUnowned = isUnowned
	}
	return decl
}

func (p *Parser) parseIfOrIfLet() ast.Statement {
	start := p.pos()
	if p.peekTok.Type == lexer.TokenLet {
		p.nextToken() // consume `if`, curTok now `let`... actually we want to move onto let
		p.nextToken() // curTok = identifier after let
		if p.curTok.Type != lexer.TokenIdentifier {
			p.addError("expected identifier after if let")
			return nil
		}
		name := p.curTok.Literal
		if !p.expectPeek(lexer.TokenAssign) {
			return nil
		}
		p.nextToken()
		opt := p.parseExpression(precLowest)
		then := p.parseBlock()
		var elseStmt ast.Statement
		if p.peekTok.Type == lexer.TokenElse {
			p.nextToken()
			elseStmt = p.parseElseTail()
		}
		return &ast.IfLetStmt{Position: start, Name: name, Opt: opt, Then: then, Else: elseStmt}
	}

	p.nextToken()
	cond := p.parseExpression(precLowest)
	then := p.parseBlock()
	var elseStmt ast.Statement
	if p.peekTok.Type == lexer.TokenElse {
		p.nextToken()
		elseStmt = p.parseElseTail()
	}
	return &ast.IfStmt{Position: start, Cond: cond, Then: then, Else: elseStmt}
}

func (p *Parser) parseElseTail() ast.Statement {
	if p.peekTok.Type == lexer.TokenIf {
		p.nextToken()
		return p.parseIfOrIfLet()
	}
	return p.parseBlock()
}

func (p *Parser) parseGuardLet() ast.Statement {
	start := p.pos()
	if !p.expectPeek(lexer.TokenLet) {
		return nil
	}
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	if !p.expectPeek(lexer.TokenAssign) {
		return nil
	}
	p.nextToken()
	opt := p.parseExpression(precLowest)
	if !p.expectPeek(lexer.TokenElse) {
		return nil
	}
	elseBlock := p.parseBlock()
	return &ast.GuardLetStmt{Position: start, Name: name, Opt: opt, Else: elseBlock}
}

func (p *Parser) parseWhile() ast.Statement {
	start := p.pos()
	p.nextToken()
	cond := p.parseExpression(precLowest)
	body := p.parseBlock()
	return &ast.WhileStmt{Position: start, Cond: cond, Body: body}
}

func (p *Parser) parseRepeatWhile() ast.Statement {
	start := p.pos()
	body := p.parseBlock()
	if !p.expectPeek(lexer.TokenWhile) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(precLowest)
	return &ast.RepeatWhileStmt{Position: start, Body: body, Cond: cond}
}

func (p *Parser) parseForIn() ast.Statement {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	if !p.expectPeek(lexer.TokenIn) {
		return nil
	}
	p.nextToken()
	iterable := p.parseExpression(precLowest)
	body := p.parseBlock()
	return &ast.ForInStmt{Position: start, Name: name, Iterable: iterable, Body: body}
}

func (p *Parser) parseReturn() ast.Statement {
	start := p.pos()
	if p.peekTok.Type == lexer.TokenRBrace || p.peekTok.Type == lexer.TokenSemicolon || p.peekTok.Type == lexer.TokenEOF {
		return &ast.ReturnStmt{Position: start}
	}
	p.nextToken()
	value := p.parseExpression(precLowest)
	return &ast.ReturnStmt{Position: start, Value: value}
}

func (p *Parser) parseThrow() ast.Statement {
	start := p.pos()
	p.nextToken()
	value := p.parseExpression(precLowest)
	return &ast.ThrowStmt{Position: start, Value: value}
}

func (p *Parser) parseImport() ast.Statement {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	alias := ""
	if p.peekTok.Type == lexer.TokenAs {
		p.nextToken()
		if !p.expectPeek(lexer.TokenIdentifier) {
			return nil
		}
		alias = p.curTok.Literal
	}
	return &ast.ImportStmt{Position: start, Name: name, Alias: alias}
}

func (p *Parser) parseStaticMember() ast.Statement {
	p.nextToken()
	switch p.curTok.Type {
	case lexer.TokenFunc:
		decl := p.parseFunctionDecl(false, false, false, true)
		return decl
	case lexer.TokenLet, lexer.TokenVar:
		decl := p.parseVarDecl()
		if pd, ok := decl.(*ast.VarDecl); ok {
			return &ast.PropertyDecl{Position: pd.Position, Name: pd.Name, IsLet: pd.IsLet, Default: pd.Init, IsStatic: true}
		}
		return decl
	default:
		p.addError("expected func/let/var after static")
		return nil
	}
}

func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param
	if !p.expectPeek(lexer.TokenLParen) {
		return params
	}
	if p.peekTok.Type == lexer.TokenRParen {
		p.nextToken()
		return params
	}
	p.nextToken()
	for {
		param := p.parseOneParam()
		params = append(params, param)
		if p.peekTok.Type == lexer.TokenComma {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(lexer.TokenRParen) {
		return params
	}
	return params
}

func (p *Parser) parseOneParam() ast.Param {
	var param ast.Param
	first := p.curTok.Literal
	if p.peekTok.Type == lexer.TokenIdentifier {
		// "label name" form
		param.Label = first
		p.nextToken()
		param.Name = p.curTok.Literal
	} else {
		param.Label = first
		param.Name = first
	}
	if p.peekTok.Type == lexer.TokenColon {
		p.nextToken()
		p.nextToken()
		param.Type = p.curTok.Literal
	}
	if p.peekTok.Type == lexer.TokenAssign {
		p.nextToken()
		p.nextToken()
		param.Default = p.parseExpression(precAssign)
	}
	return param
}

func (p *Parser) parseGenericsClause() []string {
	var generics []string
	if p.peekTok.Type != lexer.TokenLess {
		return generics
	}
	p.nextToken() // consume <
	p.nextToken()
	for {
		generics = append(generics, p.curTok.Literal)
		if p.peekTok.Type == lexer.TokenComma {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(lexer.TokenGreater) {
		return generics
	}
	return generics
}

func (p *Parser) parseFunctionDecl(isInit, isOverride, isMutating, isStatic bool) *ast.FunctionDecl {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	generics := p.parseGenericsClause()
	params := p.parseParamList()

	if p.peekTok.Type == lexer.TokenArrow {
		p.nextToken()
		p.nextToken() // skip return type name, dynamically typed VM doesn't need it
	}

	body := p.parseBlock()
	return &ast.FunctionDecl{
		Position: start, Name: name, Generics: generics, Params: params, Body: body,
		IsInitializer: isInit, IsOverride: isOverride, IsMutating: isMutating, IsStatic: isStatic,
	}
}

func (p *Parser) parseInitDecl() *ast.FunctionDecl {
	start := p.pos()
	params := p.parseParamList()
	body := p.parseBlock()
	return &ast.FunctionDecl{Position: start, Name: "init", Params: params, Body: body, IsInitializer: true}
}

func (p *Parser) parsePropertyDecl(isLazy bool) ast.Statement {
	start := p.pos()
	isLet := p.curTok.Type == lexer.TokenLet
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	if p.peekTok.Type == lexer.TokenColon {
		p.nextToken()
		p.nextToken()
	}

	var def ast.Expression
	if p.peekTok.Type == lexer.TokenAssign {
		p.nextToken()
		p.nextToken()
		def = p.parseExpression(precLowest)
	}

	decl := &ast.PropertyDecl{Position: start, Name: name, IsLet: isLet, IsLazy: isLazy, Default: def}

	if p.peekTok.Type == lexer.TokenLBrace {
		p.nextToken()
		return p.parseObserversOrComputed(decl)
	}
	return decl
}

// parseObserversOrComputed disambiguates `{ get set }`/`{ willSet didSet }`
// bodies that follow a property name, producing either an observer-bearing
// PropertyDecl or a ComputedPropertyDecl.
func (p *Parser) parseObserversOrComputed(decl *ast.PropertyDecl) ast.Statement {
	p.nextToken()
	var getter, setter *ast.FunctionDecl
	isComputed := false
	for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
		switch p.curTok.Type {
		case lexer.TokenWillSet:
			body := p.parseBlock()
			decl.WillSet = &ast.FunctionDecl{Position: body.Position, Name: "willSet", Body: body, Params: []ast.Param{{Name: "newValue"}}}
		case lexer.TokenDidSet:
			body := p.parseBlock()
			decl.DidSet = &ast.FunctionDecl{Position: body.Position, Name: "didSet", Body: body, Params: []ast.Param{{Name: "oldValue"}}}
		case lexer.TokenIdentifier:
			if p.curTok.Literal == "get" {
				isComputed = true
				body := p.parseBlock()
				getter = &ast.FunctionDecl{Position: body.Position, Name: "get", Body: body}
			} else if p.curTok.Literal == "set" {
				isComputed = true
				body := p.parseBlock()
				setter = &ast.FunctionDecl{Position: body.Position, Name: "set", Body: body, Params: []ast.Param{{Name: "newValue"}}}
			}
		}
		p.nextToken()
	}
	if isComputed {
		return &ast.ComputedPropertyDecl{Position: decl.Position, Name: decl.Name, Getter: getter, Setter: setter, IsStatic: decl.IsStatic}
	}
	return decl
}

func (p *Parser) parseMemberList(closing lexer.TokenType) []ast.Statement {
	var members []ast.Statement
	p.nextToken()
	for p.curTok.Type != closing && p.curTok.Type != lexer.TokenEOF {
		p.skipSemicolons()
		if p.curTok.Type == closing {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			members = append(members, stmt)
		}
		p.nextToken()
	}
	return members
}

func (p *Parser) parseConformances() []string {
	var list []string
	if p.peekTok.Type != lexer.TokenColon {
		return list
	}
	p.nextToken()
	p.nextToken()
	for {
		list = append(list, p.curTok.Literal)
		if p.peekTok.Type == lexer.TokenComma {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	return list
}

func (p *Parser) parseClassDecl() ast.Statement {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	generics := p.parseGenericsClause()

	superClass := ""
	conformances := p.parseConformances()
	if len(conformances) > 0 {
		// the first entry after `:` is always recorded as the superclass and
		// the rest as conformances; nothing later reclassifies them, so a
		// class whose first listed name is a protocol fails when the VM
		// looks that name up as its superclass.
		superClass = conformances[0]
		conformances = conformances[1:]
	}

	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	var deinit *ast.BlockStmt
	members := p.parseMemberListCapturingDeinit(lexer.TokenRBrace, &deinit)

	return &ast.ClassDecl{Position: start, Name: name, Generics: generics, SuperClass: superClass, Conformances: conformances, Members: members, Deinit: deinit}
}

func (p *Parser) parseMemberListCapturingDeinit(closing lexer.TokenType, deinit **ast.BlockStmt) []ast.Statement {
	var members []ast.Statement
	p.nextToken()
	for p.curTok.Type != closing && p.curTok.Type != lexer.TokenEOF {
		p.skipSemicolons()
		if p.curTok.Type == closing {
			break
		}
		if p.curTok.Type == lexer.TokenDeinit {
			*deinit = p.parseBlock()
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			members = append(members, stmt)
		}
		p.nextToken()
	}
	return members
}

func (p *Parser) parseStructDecl() ast.Statement {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	generics := p.parseGenericsClause()
	conformances := p.parseConformances()
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	members := p.parseMemberList(lexer.TokenRBrace)
	return &ast.StructDecl{Position: start, Name: name, Generics: generics, Conformances: conformances, Members: members}
}

func (p *Parser) parseEnumDecl() ast.Statement {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	p.parseConformances() // raw-value backing type, if any; cases carry their own raw values
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	p.nextToken()

	var cases []ast.EnumCaseDecl
	var members []ast.Statement
	for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
		p.skipSemicolons()
		if p.curTok.Type == lexer.TokenRBrace {
			break
		}
		if p.curTok.Literal == "case" && p.curTok.Type == lexer.TokenIdentifier {
			cases = append(cases, p.parseEnumCase()...)
		} else {
			stmt := p.parseStatement()
			if stmt != nil {
				members = append(members, stmt)
			}
		}
		p.nextToken()
	}

	return &ast.EnumDecl{Position: start, Name: name, Cases: cases, Members: members}
}

func (p *Parser) parseEnumCase() []ast.EnumCaseDecl {
	var out []ast.EnumCaseDecl
	for {
		start := p.pos()
		if !p.expectPeek(lexer.TokenIdentifier) {
			return out
		}
		name := p.curTok.Literal
		var associated []ast.Param
		if p.peekTok.Type == lexer.TokenLParen {
			p.nextToken()
			associated = p.parseAssociatedValueParams()
		}
		var rawValue ast.Expression
		if p.peekTok.Type == lexer.TokenAssign {
			p.nextToken()
			p.nextToken()
			rawValue = p.parseExpression(precAssign)
		}
		out = append(out, ast.EnumCaseDecl{Position: start, Name: name, RawValue: rawValue, Associated: associated})
		if p.peekTok.Type == lexer.TokenComma {
			p.nextToken()
			continue
		}
		break
	}
	return out
}

func (p *Parser) parseAssociatedValueParams() []ast.Param {
	var params []ast.Param
	if p.peekTok.Type == lexer.TokenRParen {
		p.nextToken()
		return params
	}
	p.nextToken()
	for {
		params = append(params, p.parseOneParam())
		if p.peekTok.Type == lexer.TokenComma {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	p.expectPeek(lexer.TokenRParen)
	return params
}

func (p *Parser) parseProtocolDecl() ast.Statement {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	inherited := p.parseConformances()
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	p.nextToken()

	var reqs []ast.ProtocolRequirement
	for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
		p.skipSemicolons()
		if p.curTok.Type == lexer.TokenRBrace {
			break
		}
		switch p.curTok.Type {
		case lexer.TokenVar, lexer.TokenLet:
			if !p.expectPeek(lexer.TokenIdentifier) {
				break
			}
			reqName := p.curTok.Literal
			hasSetter := false
			if p.peekTok.Type == lexer.TokenLBrace {
				p.nextToken()
				depth := 0
				for {
					if p.curTok.Type == lexer.TokenLBrace {
						depth++
					}
					if p.curTok.Type == lexer.TokenRBrace {
						depth--
						if depth == 0 {
							break
						}
					}
					if p.curTok.Type == lexer.TokenIdentifier && p.curTok.Literal == "set" {
						hasSetter = true
					}
					p.nextToken()
				}
			}
			reqs = append(reqs, ast.ProtocolRequirement{Name: reqName, IsProperty: true, HasSetter: hasSetter})
		case lexer.TokenFunc:
			if !p.expectPeek(lexer.TokenIdentifier) {
				break
			}
			reqName := p.curTok.Literal
			p.parseParamList()
			if p.peekTok.Type == lexer.TokenArrow {
				p.nextToken()
				p.nextToken()
			}
			reqs = append(reqs, ast.ProtocolRequirement{Name: reqName, IsProperty: false})
		}
		p.nextToken()
	}

	return &ast.ProtocolDecl{Position: start, Name: name, InheritedProtocols: inherited, Requirements: reqs}
}

func (p *Parser) parseExtensionDecl() ast.Statement {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return nil
	}
	name := p.curTok.Literal
	conformances := p.parseConformances()
	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}
	members := p.parseMemberList(lexer.TokenRBrace)
	return &ast.ExtensionDecl{Position: start, TypeName: name, Conformances: conformances, Members: members}
}

// --- expression parsing ---

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix, ok := p.prefixFns[p.curTok.Type]
	if !ok {
		p.addError("no prefix parse function for %s (%q)", p.curTok.Type, p.curTok.Literal)
		return nil
	}
	left := prefix()

	for p.peekTok.Type != lexer.TokenSemicolon && precedence < p.peekPrecedence() {
		infix, ok := p.infixFns[p.peekTok.Type]
		if !ok {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Position: p.pos(), Name: p.curTok.Literal}
}

func (p *Parser) parseSuper() ast.Expression {
	start := p.pos()
	if p.peekTok.Type == lexer.TokenDot {
		p.nextToken()
		if !p.expectPeek(lexer.TokenIdentifier) {
			return &ast.SuperExpr{Position: start}
		}
		return &ast.SuperExpr{Position: start, Method: p.curTok.Literal}
	}
	return &ast.SuperExpr{Position: start}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	start := p.pos()
	v, err := strconv.ParseInt(p.curTok.Literal, 10, 64)
	if err != nil {
		p.addError("could not parse %q as integer", p.curTok.Literal)
		return nil
	}
	return &ast.IntegerLiteral{Position: start, Value: v}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	start := p.pos()
	v, err := strconv.ParseFloat(p.curTok.Literal, 64)
	if err != nil {
		p.addError("could not parse %q as float", p.curTok.Literal)
		return nil
	}
	return &ast.FloatLiteral{Position: start, Value: v}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Position: p.pos(), Value: p.curTok.Literal}
}

func (p *Parser) parseUnary() ast.Expression {
	start := p.pos()
	op := p.curTok.Literal
	p.nextToken()
	operand := p.parseExpression(precUnary)
	return &ast.UnaryExpr{Position: start, Op: op, Operand: operand}
}

func (p *Parser) parseBinary(left ast.Expression) ast.Expression {
	start := p.pos()
	op := p.curTok.Literal
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	return &ast.BinaryExpr{Position: start, Op: op, Left: left, Right: right}
}

func (p *Parser) parseLogical(left ast.Expression) ast.Expression {
	start := p.pos()
	op := p.curTok.Literal
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	return &ast.LogicalExpr{Position: start, Op: op, Left: left, Right: right}
}

func (p *Parser) parseNilCoalesce(left ast.Expression) ast.Expression {
	start := p.pos()
	p.nextToken()
	right := p.parseExpression(precNilCoalesce - 1) // right-associative
	return &ast.NilCoalesceExpr{Position: start, Left: left, Right: right}
}

func (p *Parser) parseRange(left ast.Expression) ast.Expression {
	start := p.pos()
	inclusive := p.curTok.Type == lexer.TokenRange
	p.nextToken()
	right := p.parseExpression(precRange)
	return &ast.RangeExpr{Position: start, Start: left, End: right, Inclusive: inclusive}
}

func (p *Parser) parseAssign(left ast.Expression) ast.Expression {
	start := p.pos()
	op := p.curTok.Literal
	p.nextToken()
	value := p.parseExpression(precAssign - 1)
	if op != "=" {
		value = &ast.BinaryExpr{Position: start, Op: string(op[0]), Left: left, Right: value}
	}
	return &ast.AssignExpr{Position: start, Target: left, Value: value}
}

func (p *Parser) parseCall(left ast.Expression) ast.Expression {
	return p.finishCall(left, nil)
}

// finishCall parses a `(` arg, arg, ... `)` list for a call whose callee
// (and, when present, whose <TypeArg, ...> list) has already been parsed;
// curTok is the call's `(` on entry.
func (p *Parser) finishCall(left ast.Expression, typeArgs []string) ast.Expression {
	start := p.pos()
	call := &ast.CallExpr{Position: start, Callee: left, TypeArgs: typeArgs}
	if p.peekTok.Type == lexer.TokenRParen {
		p.nextToken()
		return call
	}
	p.nextToken()
	for {
		call.Args = append(call.Args, p.parseArgument())
		if p.peekTok.Type == lexer.TokenComma {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	p.expectPeek(lexer.TokenRParen)
	return call
}

// parserMark snapshots enough parser state to undo a speculative scan: the
// lexer's scan position and the two-token lookahead window.
type parserMark struct {
	l       *lexer.Lexer
	curTok  lexer.Token
	peekTok lexer.Token
}

func (p *Parser) mark() parserMark {
	return parserMark{l: p.l.Clone(), curTok: p.curTok, peekTok: p.peekTok}
}

func (p *Parser) resetTo(m parserMark) {
	p.l = m.l
	p.curTok = m.curTok
	p.peekTok = m.peekTok
}

// parseLessOrGenericCall resolves the `<` ambiguity between a comparison
// and a call's generic type-argument list (spec §9's "uses that supply
// concrete type arguments trigger specialization"): `name<T, U>(args)` is a
// generic call only when a comma-separated identifier list is immediately
// closed by `>` followed by `(`. Anything else falls back to an ordinary
// `<` comparison, restoring the scan position first since the speculative
// attempt may have consumed tokens.
func (p *Parser) parseLessOrGenericCall(left ast.Expression) ast.Expression {
	if _, ok := left.(*ast.Identifier); !ok {
		return p.parseBinary(left)
	}

	m := p.mark()
	typeArgs, ok := p.tryParseTypeArgs()
	if !ok || p.peekTok.Type != lexer.TokenLParen {
		p.resetTo(m)
		return p.parseBinary(left)
	}
	p.nextToken() // consume '>', landing curTok on '('
	return p.finishCall(left, typeArgs)
}

// tryParseTypeArgs attempts to consume a `<Type, Type, ...>` list starting
// with curTok on `<`. It reports false (leaving the parser's position
// undefined — callers must restore a mark) if what follows isn't a clean
// identifier list closed by `>`.
func (p *Parser) tryParseTypeArgs() ([]string, bool) {
	var args []string
	if p.peekTok.Type != lexer.TokenIdentifier {
		return nil, false
	}
	p.nextToken()
	for {
		args = append(args, p.curTok.Literal)
		switch p.peekTok.Type {
		case lexer.TokenComma:
			p.nextToken()
			if p.peekTok.Type != lexer.TokenIdentifier {
				return nil, false
			}
			p.nextToken()
			continue
		case lexer.TokenGreater:
			p.nextToken()
			return args, true
		default:
			return nil, false
		}
	}
}

func (p *Parser) parseArgument() ast.Argument {
	if p.curTok.Type == lexer.TokenIdentifier && p.peekTok.Type == lexer.TokenColon {
		label := p.curTok.Literal
		p.nextToken()
		p.nextToken()
		return ast.Argument{Label: label, Value: p.parseExpression(precAssign)}
	}
	return ast.Argument{Value: p.parseExpression(precAssign)}
}

func (p *Parser) parseMember(left ast.Expression) ast.Expression {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return left
	}
	return &ast.MemberExpr{Position: start, Receiver: left, Name: p.curTok.Literal}
}

func (p *Parser) parseOptionalChain(left ast.Expression) ast.Expression {
	start := p.pos()
	if !p.expectPeek(lexer.TokenIdentifier) {
		return left
	}
	return &ast.OptionalChainExpr{Position: start, Receiver: left, Name: p.curTok.Literal}
}

func (p *Parser) parseSubscript(left ast.Expression) ast.Expression {
	start := p.pos()
	p.nextToken()
	index := p.parseExpression(precLowest)
	p.expectPeek(lexer.TokenRBracket)
	return &ast.SubscriptExpr{Position: start, Receiver: left, Index: index}
}

func (p *Parser) parseForceUnwrap(left ast.Expression) ast.Expression {
	return &ast.ForceUnwrapExpr{Position: p.pos(), Operand: left}
}

func (p *Parser) parseParenOrTuple() ast.Expression {
	start := p.pos()
	p.nextToken()
	if p.curTok.Type == lexer.TokenRParen {
		return &ast.TupleExpr{Position: start}
	}

	first := p.parseTupleElement()
	elements := []ast.TupleElement{first}
	for p.peekTok.Type == lexer.TokenComma {
		p.nextToken()
		p.nextToken()
		elements = append(elements, p.parseTupleElement())
	}
	p.expectPeek(lexer.TokenRParen)

	if len(elements) == 1 && elements[0].Label == "" {
		return elements[0].Value
	}
	return &ast.TupleExpr{Position: start, Elements: elements}
}

func (p *Parser) parseTupleElement() ast.TupleElement {
	if p.curTok.Type == lexer.TokenIdentifier && p.peekTok.Type == lexer.TokenColon {
		label := p.curTok.Literal
		p.nextToken()
		p.nextToken()
		return ast.TupleElement{Label: label, Value: p.parseExpression(precAssign)}
	}
	return ast.TupleElement{Value: p.parseExpression(precAssign)}
}

func (p *Parser) parseArrayOrDictLiteral() ast.Expression {
	start := p.pos()
	if p.peekTok.Type == lexer.TokenRBracket {
		p.nextToken()
		return &ast.ArrayLiteral{Position: start}
	}
	if p.peekTok.Type == lexer.TokenColon {
		// empty dict literal `[:]`
		p.nextToken()
		p.nextToken()
		return &ast.DictLiteral{Position: start}
	}

	p.nextToken()
	firstExpr := p.parseExpression(precAssign)
	if p.peekTok.Type == lexer.TokenColon {
		p.nextToken()
		p.nextToken()
		firstVal := p.parseExpression(precAssign)
		entries := []ast.DictEntry{{Key: firstExpr, Value: firstVal}}
		for p.peekTok.Type == lexer.TokenComma {
			p.nextToken()
			p.nextToken()
			k := p.parseExpression(precAssign)
			p.expectPeek(lexer.TokenColon)
			p.nextToken()
			v := p.parseExpression(precAssign)
			entries = append(entries, ast.DictEntry{Key: k, Value: v})
		}
		p.expectPeek(lexer.TokenRBracket)
		return &ast.DictLiteral{Position: start, Entries: entries}
	}

	elements := []ast.Expression{firstExpr}
	for p.peekTok.Type == lexer.TokenComma {
		p.nextToken()
		p.nextToken()
		elements = append(elements, p.parseExpression(precAssign))
	}
	p.expectPeek(lexer.TokenRBracket)
	return &ast.ArrayLiteral{Position: start, Elements: elements}
}

func (p *Parser) parseClosureLiteral() ast.Expression {
	start := p.pos()
	p.nextToken()

	var params []ast.ClosureParam
	if p.curTok.Type == lexer.TokenIdentifier {
		savedCur, savedPeek := p.curTok, p.peekTok
		savedLexerPos := *p.l
		var names []string
		ok := true
		for p.curTok.Type == lexer.TokenIdentifier {
			names = append(names, p.curTok.Literal)
			if p.peekTok.Type == lexer.TokenComma {
				p.nextToken()
				p.nextToken()
				continue
			}
			break
		}
		if p.peekTok.Type == lexer.TokenIn {
			p.nextToken() // now at `in`
			p.nextToken()
			for _, n := range names {
				params = append(params, ast.ClosureParam{Name: n})
			}
		} else {
			ok = false
		}
		if !ok {
			p.curTok, p.peekTok = savedCur, savedPeek
			*p.l = savedLexerPos
		}
	}

	var body []ast.Statement
	for p.curTok.Type != lexer.TokenRBrace && p.curTok.Type != lexer.TokenEOF {
		p.skipSemicolons()
		if p.curTok.Type == lexer.TokenRBrace {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			body = append(body, stmt)
		}
		p.nextToken()
	}

	return &ast.ClosureExpr{Position: start, Params: params, Body: body}
}
