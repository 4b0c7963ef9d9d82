// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rules

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/awslabs/cryptoslice/analysis/ir"
	"github.com/awslabs/cryptoslice/analysis/slice"
)

// partialIndex indexes the feasible partial slices of the store by the lookups of the checker
type partialIndex struct {
	byCaller map[string][]*slice.Partial
	returns  map[string][]*slice.Partial
	writers  map[string][]*slice.Partial
	params   map[string][]*slice.Partial
}

func (c *Checker) partials() *partialIndex {
	if c.index != nil {
		return c.index
	}
	idx := &partialIndex{
		byCaller: map[string][]*slice.Partial{},
		returns:  map[string][]*slice.Partial{},
		writers:  map[string][]*slice.Partial{},
		params:   map[string][]*slice.Partial{},
	}
	for _, p := range c.store.Partials() {
		if p.Infeasible {
			continue
		}
		idx.byCaller[p.Caller] = append(idx.byCaller[p.Caller], p)
		switch p.TargetKind {
		case slice.TargetReturn:
			idx.returns[p.Caller] = append(idx.returns[p.Caller], p)
		case slice.TargetFieldWrite:
			idx.writers[p.Target] = append(idx.writers[p.Target], p)
		case slice.TargetParameter:
			idx.params[p.Target] = append(idx.params[p.Target], p)
		}
	}
	c.index = idx
	return idx
}

// lineSubslices returns the subslices of a line of a combined slice that share no line with it: the return slices of
// the callee of a call (every slice of the callee when all is set) and the writer slices of a field read, each
// expanded transitively
func (c *Checker) lineSubslices(ctx context.Context, l slice.Line, combined []slice.Line, all bool) [][]slice.Line {
	u := l.Unit
	idx := c.partials()
	var key string
	var start []*slice.Partial
	switch {
	case u.Kind.IsInvoke() && all:
		key, start = "all:"+u.Signature, idx.byCaller[u.Signature]
	case u.Kind.IsInvoke():
		key, start = "return:"+u.Signature, idx.returns[u.Signature]
	case u.Kind == ir.KindAssignVariableField:
		key, start = "field:"+u.FieldSignature(), idx.writers[u.FieldSignature()]
	default:
		return nil
	}
	subs, ok := c.subslices[key]
	if !ok {
		subs = c.expand(ctx, start)
		c.subslices[key] = subs
	}
	keys := map[string]bool{}
	for _, x := range combined {
		keys[x.Key()] = true
	}
	var res [][]slice.Line
	for _, sub := range subs {
		shared := false
		for _, x := range sub {
			if keys[x.Key()] {
				shared = true
				break
			}
		}
		if !shared {
			res = append(res, sub)
		}
	}
	return res
}

// expand returns the lines of the partial slices reachable from start through the calls, the field reads and the
// parameters of their lines, in breadth-first order
func (c *Checker) expand(ctx context.Context, start []*slice.Partial) [][]slice.Line {
	idx := c.partials()
	seen := map[string]bool{}
	queue := append([]*slice.Partial{}, start...)
	var res [][]slice.Line
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		lines := c.partialLines(ctx, p)
		if len(lines) == 0 {
			continue
		}
		res = append(res, lines)
		for i := len(lines) - 1; i >= 0; i-- {
			u := lines[i].Unit
			if u == nil {
				continue
			}
			switch {
			case u.Kind.IsInvoke():
				queue = append(queue, idx.returns[u.Signature]...)
			case u.Kind == ir.KindAssignVariableField:
				queue = append(queue, idx.writers[u.FieldSignature()]...)
			case u.Kind == ir.KindParameter:
				queue = append(queue, idx.params[lines[i].Caller]...)
			}
		}
	}
	return res
}

// partialLines returns the lines of a partial slice, ending with its seed statement for return and field-write
// slices, whose seed holds the value
func (c *Checker) partialLines(ctx context.Context, p *slice.Partial) []slice.Line {
	lines := p.Lines
	if p.TargetKind != slice.TargetReturn && p.TargetKind != slice.TargetFieldWrite {
		return lines
	}
	body := c.bodies.Body(ctx, p.Caller)
	if body == nil || p.Start < 0 || p.Start >= body.Len() {
		return lines
	}
	return append(append([]slice.Line{}, lines...), slice.NewLine(p.Caller, body.Whole[p.Start]))
}

var (
	base64Regex = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
	hexRegex    = regexp.MustCompile(`^[0-9A-Fa-f]+$`)
)

// rsaModulusBits returns the modulus size of an RSA key encoded in base64 or hex, as an X.509 public key or a
// PKCS #8 or PKCS #1 private key
func rsaModulusBits(s string) (int, bool) {
	s = strings.NewReplacer(`\r`, "", `\n`, "", "\r", "", "\n", "").Replace(s)
	var encodings [][]byte
	if base64Regex.MatchString(s) {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			encodings = append(encodings, b)
		}
	}
	if hexRegex.MatchString(s) {
		if len(s)%2 == 1 {
			s = "0" + s
		}
		if b, err := hex.DecodeString(s); err == nil {
			encodings = append(encodings, b)
		}
	}
	for _, b := range encodings {
		if bits, ok := rsaKeyBits(b); ok {
			return bits, true
		}
	}
	return 0, false
}

func rsaKeyBits(der []byte) (int, bool) {
	if k, err := x509.ParsePKIXPublicKey(der); err == nil {
		if pub, ok := k.(*rsa.PublicKey); ok {
			return pub.N.BitLen(), true
		}
	}
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if priv, ok := k.(*rsa.PrivateKey); ok {
			return priv.N.BitLen(), true
		}
	}
	if priv, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return priv.N.BitLen(), true
	}
	return 0, false
}
