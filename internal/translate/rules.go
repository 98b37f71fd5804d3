package translate

import "fmt"

type rule struct {
	keyword string
	// apply returns false when the shape around the keyword does not match,
	// letting later rules try the same token.
	apply func(t *translation, i int) bool
}

// rules is the fixed priority order of the translator.
var rules = []rule{
	{"function", mainFunction},
	{"{", literal("{")},
	{"}", literal("}")},
	{"print", printLiteral},
	{"#include", include},
	{"C", rawBlock},
	{"int", intDeclaration},
	{"print.int", formattedPrint(`printf("%d\n",`)},
	{"string", stringDeclaration},
	{"print.string", formattedPrint(`printf("%s\n",`)},
	{"realloc", reallocString},
}

// function main ( ... -> int main( ) or int main(int argc, char** argv)
func mainFunction(t *translation, i int) bool {
	if t.peek(i+1) != "main" || t.peek(i+2) != "(" {
		t.diagnose("only `function main(` is translated")
		return false
	}
	t.emit("int main(")
	if t.peek(i+4) == "args)" {
		t.emit("int argc, char** argv)")
	} else {
		t.emit(")")
	}
	return true
}

func literal(text string) func(*translation, int) bool {
	return func(t *translation, _ int) bool {
		t.emit(text)
		return true
	}
}

// print ( " words ... " -> printf("words ...");
func printLiteral(t *translation, i int) bool {
	if t.peek(i+2) != `"` {
		t.diagnose("expected a quoted string two tokens after print")
		return false
	}
	t.emit(`printf("`)
	closed := false
	for z := i + 3; z < t.tokens.Len(); z++ {
		tok := t.tokens.At(z)
		if tok == `"` {
			t.emit(`"`)
			closed = true
			break
		}
		t.emit(tok)
		if t.peek(z+1) != `"` {
			t.emit(" ")
		}
	}
	if !closed {
		t.diagnose("string is never closed")
	}
	t.emit(");")
	return true
}

// #include dawnlang.io -> #include<stdio.h>
func include(t *translation, i int) bool {
	t.emit("#include")
	name := t.peek(i + 1)
	header, ok := t.engine.modules.Lookup(name)
	if !ok {
		msg := fmt.Sprintf("unknown module %q", name)
		if s := Suggest(name, t.engine.modules.Names(), 1); len(s) > 0 {
			msg += fmt.Sprintf(", did you mean %q?", s[0])
		}
		t.diagnose(msg)
		return true
	}
	t.emit(header + "\n")
	return true
}

// C [ ... - End copies the enclosed tokens unchanged.
func rawBlock(t *translation, i int) bool {
	if t.peek(i+1) != "[" {
		t.diagnose("expected [ after C")
		return false
	}
	closed := false
	for z := i + 2; z < t.tokens.Len(); z++ {
		tok := t.tokens.At(z)
		if next, _ := t.tokens.Peek(z + 1); tok == "-" && next == "End" {
			closed = true
			break
		}
		t.emit(tok)
		if next, ok := t.tokens.Peek(z + 1); ok && next == " " {
			t.emit(next)
			z++
		}
	}
	if !closed {
		t.diagnose("raw block has no - End marker")
	}
	return true
}

// int x = 5 -> int x=5;
func intDeclaration(t *translation, i int) bool {
	t.emit("int", " ", t.peek(i+1))
	if t.peek(i+2) == "=" {
		value := t.peek(i + 3)
		t.emit("=", value)
		t.result.DeclaredInts = append(t.result.DeclaredInts, atoi(value))
	}
	t.emit(";")
	return true
}

// print.int ( x ) -> printf("%d\n",x);
func formattedPrint(prefix string) func(*translation, int) bool {
	return func(t *translation, i int) bool {
		t.emit(prefix, t.peek(i+2), ");")
		return true
	}
}

// string s = " hi " ; -> char s[]="hi";;
func stringDeclaration(t *translation, i int) bool {
	name := t.peek(i + 1)
	t.emit("char ", name, "[]")
	for z := i + 2; z < i+7; z++ {
		t.emit(t.peek(z))
	}
	t.emit(";")
	t.result.DeclaredStrings = append(t.result.DeclaredStrings, name)
	return true
}

// realloc ( s, " text " ) -> strncpy(s,"text",sizeof(s));
func reallocString(t *translation, i int) bool {
	target := t.peek(i + 2)
	t.emit("strncpy(", target, `"`, t.peek(i+4), `"`, ",", "sizeof(", dropLast(target), "));")
	return true
}
