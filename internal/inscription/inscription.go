// Package inscription extracts inscription envelopes from transaction
// witnesses. Extraction is pure and deterministic: the same transaction
// always yields the same result.
package inscription

import "github.com/btcsuite/btcd/wire"

// Envelope script constants.
const (
	opFalse     = 0x00
	opIf        = 0x63
	opEndIf     = 0x68
	opPushdata1 = 0x4c
	opPushdata2 = 0x4d
	opPushdata4 = 0x4e
)

// protocolID marks an envelope as an inscription.
var protocolID = []byte("ord")

// Field tags inside the envelope. The body tag is the empty push.
var tagContentType = []byte{1}

// Inscription is a parsed envelope payload. Either field may be nil.
type Inscription struct {
	ContentType []byte
	Body        []byte
}

// FromTransaction returns the first inscription found in any input
// witness, or nil when the transaction inscribes nothing.
func FromTransaction(tx *wire.MsgTx) *Inscription {
	for _, in := range tx.TxIn {
		for _, element := range in.Witness {
			if ins := fromScript(element); ins != nil {
				return ins
			}
		}
	}
	return nil
}

// token is one tokenized script element: a data push or a bare opcode.
type token struct {
	opcode byte
	data   []byte
	push   bool
}

// tokenize splits a script into tokens. Returns false on a truncated push.
func tokenize(script []byte) ([]token, bool) {
	var tokens []token
	for i := 0; i < len(script); {
		op := script[i]
		i++

		var size int
		switch {
		case op == opFalse:
			tokens = append(tokens, token{opcode: op, push: true})
			continue
		case op >= 1 && op <= 0x4b:
			size = int(op)
		case op == opPushdata1:
			if i >= len(script) {
				return nil, false
			}
			size = int(script[i])
			i++
		case op == opPushdata2:
			if i+2 > len(script) {
				return nil, false
			}
			size = int(script[i]) | int(script[i+1])<<8
			i += 2
		case op == opPushdata4:
			if i+4 > len(script) {
				return nil, false
			}
			size = int(script[i]) | int(script[i+1])<<8 | int(script[i+2])<<16 | int(script[i+3])<<24
			i += 4
		default:
			tokens = append(tokens, token{opcode: op})
			continue
		}

		if i+size > len(script) {
			return nil, false
		}
		tokens = append(tokens, token{opcode: op, data: script[i : i+size], push: true})
		i += size
	}
	return tokens, true
}

// fromScript finds and parses the first envelope in a script:
// OP_FALSE OP_IF "ord" <fields> OP_ENDIF, where fields are tag/value push
// pairs and the empty tag starts the body.
func fromScript(script []byte) *Inscription {
	tokens, ok := tokenize(script)
	if !ok {
		return nil
	}

	for i := 0; i+2 < len(tokens); i++ {
		if !(tokens[i].push && len(tokens[i].data) == 0) || tokens[i+1].opcode != opIf {
			continue
		}
		if !tokens[i+2].push || string(tokens[i+2].data) != string(protocolID) {
			continue
		}
		if ins := parseFields(tokens[i+3:]); ins != nil {
			return ins
		}
	}
	return nil
}

// parseFields reads the envelope fields up to OP_ENDIF. Any non-push
// opcode before the terminator makes the envelope invalid.
func parseFields(tokens []token) *Inscription {
	ins := &Inscription{}
	inBody := false

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !tok.push {
			if tok.opcode == opEndIf {
				return ins
			}
			return nil
		}

		if inBody {
			ins.Body = append(ins.Body, tok.data...)
			continue
		}

		if len(tok.data) == 0 {
			inBody = true
			ins.Body = []byte{}
			continue
		}

		// Tag byte followed by its value push; unknown tags are skipped.
		i++
		if i >= len(tokens) || !tokens[i].push {
			return nil
		}
		if string(tok.data) == string(tagContentType) {
			ins.ContentType = tokens[i].data
		}
	}
	return nil
}
