package lexer

import "testing"

func TestNextTokenDelimitersAndOperators(t *testing.T) {
	input := `( ) { } [ ] , : ; . -> ... ..< + - * / % = == != < > <= >= && || ! ? ?. ??`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenComma, ","},
		{TokenColon, ":"},
		{TokenSemicolon, ";"},
		{TokenDot, "."},
		{TokenArrow, "->"},
		{TokenRange, "..."},
		{TokenHalfOpen, "..<"},
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenPercent, "%"},
		{TokenAssign, "="},
		{TokenEqual, "=="},
		{TokenNotEqual, "!="},
		{TokenLess, "<"},
		{TokenGreater, ">"},
		{TokenLessEq, "<="},
		{TokenGreaterEq, ">="},
		{TokenAnd, "&&"},
		{TokenOr, "||"},
		{TokenBang, "!"},
		{TokenQuestion, "?"},
		{TokenQuestionDot, "?."},
		{TokenNilCoalesce, "??"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%s, got=%s (literal %q)", i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextTokenKeywords(t *testing.T) {
	input := `class struct enum protocol extension func let var if else guard while repeat for in break continue return throw import as self super deinit init willSet didSet lazy static mutating override weak unowned true false nil`

	expected := []TokenType{
		TokenClass, TokenStruct, TokenEnum, TokenProtocol, TokenExtension,
		TokenFunc, TokenLet, TokenVar, TokenIf, TokenElse, TokenGuard,
		TokenWhile, TokenRepeat, TokenFor, TokenIn, TokenBreak, TokenContinue,
		TokenReturn, TokenThrow, TokenImport, TokenAs, TokenSelf, TokenSuper,
		TokenDeinit, TokenInit, TokenWillSet, TokenDidSet, TokenLazy,
		TokenStatic, TokenMutating, TokenOverride, TokenWeak, TokenUnowned,
		TokenTrue, TokenFalse, TokenNil,
	}

	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Fatalf("tests[%d] - expected=%s, got=%s (literal %q)", i, want, tok.Type, tok.Literal)
		}
	}
}

func TestNextTokenIdentifiersAndLiterals(t *testing.T) {
	input := `foo bar123 _underscore 42 3.14 "hello world" "escaped \"quote\""`

	l := New(input)

	tok := l.NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "foo" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "bar123" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenIdentifier || tok.Literal != "_underscore" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenInteger || tok.Literal != "42" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenFloat || tok.Literal != "3.14" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenString || tok.Literal != "hello world" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenString || tok.Literal != `escaped "quote"` {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
}

func TestNextTokenDistinguishesRangeFromMemberAccessAfterInteger(t *testing.T) {
	l := New(`1...5`)
	tok := l.NextToken()
	if tok.Type != TokenInteger || tok.Literal != "1" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenRange {
		t.Fatalf("expected range token, got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenInteger || tok.Literal != "5" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
}

func TestNextTokenSkipsLineAndBlockComments(t *testing.T) {
	input := "let x = 1 // trailing comment\n/* block\ncomment */let y = 2"
	l := New(input)

	tok := l.NextToken()
	if tok.Type != TokenLet {
		t.Fatalf("got %s", tok.Type)
	}
	tok = l.NextToken() // x
	tok = l.NextToken() // =
	tok = l.NextToken() // 1
	if tok.Type != TokenInteger || tok.Literal != "1" {
		t.Fatalf("got %s %q", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenLet {
		t.Fatalf("expected let after comments, got %s %q", tok.Type, tok.Literal)
	}
}

func TestTokenizeReturnsErrorOnIllegalCharacter(t *testing.T) {
	l := New(`let x = @`)
	_, err := l.Tokenize()
	if err == nil {
		t.Fatal("expected error for illegal character")
	}
}
