package bf

import (
	"fmt"
	"io"
	"strings"
	"text/scanner"
)

// ParseSMT2 parses the restricted SMT-LIB 2 subset used to serialize Kbuild
// presence-condition formulas and Kconfig clauses: prefix s-expressions over
// "and", "or", "not", "=", bare symbols, and the two constants "true"/"false".
//
// Unlike the general infix grammar accepted by Parse, this format never nests
// boolean subformulas under "=": in practice, "(= NAME VALUE)" always pairs a
// symbol with a literal value (e.g. "(= BITS 32)"), so it is read back as an
// EqAtom rather than as a structural equivalence between two formulas.
func ParseSMT2(r io.Reader) (Formula, error) {
	var s scanner.Scanner
	s.Init(r)
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings
	p := smt2Parser{s: s}
	p.scan()
	f, err := p.parseSexpr()
	if err != nil {
		return nil, err
	}
	if !p.eof {
		return nil, fmt.Errorf("unexpected trailing token %q at %s", p.token, p.s.Pos())
	}
	return f, nil
}

// ParseSMT2String is a convenience wrapper around ParseSMT2 for the common
// case of a formula cached as a plain Go string.
func ParseSMT2String(s string) (Formula, error) {
	return ParseSMT2(strings.NewReader(s))
}

type smt2Parser struct {
	s     scanner.Scanner
	eof   bool
	token string
}

func (p *smt2Parser) scan() {
	if p.eof {
		return
	}
	p.eof = p.s.Scan() == scanner.EOF
	p.token = p.s.TokenText()
}

func (p *smt2Parser) parseSexpr() (Formula, error) {
	if p.eof {
		return nil, fmt.Errorf("unexpected EOF while parsing SMT-LIB2 formula")
	}
	if p.token != "(" {
		return p.parseAtom()
	}
	p.scan()
	if p.eof {
		return nil, fmt.Errorf("unexpected EOF after '(' at %s", p.s.Pos())
	}
	op := p.token
	switch op {
	case "and", "or":
		p.scan()
		var subs []Formula
		for !p.eof && p.token != ")" {
			sub, err := p.parseSexpr()
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if op == "and" {
			return And(subs...), nil
		}
		return Or(subs...), nil
	case "not":
		p.scan()
		sub, err := p.parseSexpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return Not(sub), nil
	case "=":
		p.scan()
		name, err := p.expectSymbol()
		if err != nil {
			return nil, err
		}
		if p.eof {
			return nil, fmt.Errorf("unexpected EOF while parsing '=' atom")
		}
		value := p.token
		p.scan()
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return EqAtom(name, value), nil
	default:
		return nil, fmt.Errorf("unknown operator %q at %s", op, p.s.Pos())
	}
}

func (p *smt2Parser) parseAtom() (Formula, error) {
	tok := p.token
	p.scan()
	switch tok {
	case "true":
		return True, nil
	case "false":
		return False, nil
	default:
		return Var(tok), nil
	}
}

func (p *smt2Parser) expectSymbol() (string, error) {
	if p.eof || p.token == "(" || p.token == ")" {
		return "", fmt.Errorf("expected symbol, found %q at %s", p.token, p.s.Pos())
	}
	tok := p.token
	p.scan()
	return tok, nil
}

func (p *smt2Parser) expect(tok string) error {
	if p.eof {
		return fmt.Errorf("expected %q, found EOF", tok)
	}
	if p.token != tok {
		return fmt.Errorf("expected %q, found %q at %s", tok, p.token, p.s.Pos())
	}
	p.scan()
	return nil
}
