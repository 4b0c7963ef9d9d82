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
	"fmt"
	"regexp"
	"strings"
)

// Scheme types of the combination of a cipher and a MAC
const (
	EncryptThenMac = "encrypt-then-mac"
	MacThenEncrypt = "mac-then-encrypt"
	EncryptAndMac  = "encrypt-and-mac"
)

// IsSchemeType returns true if s names a cipher and MAC combination
func IsSchemeType(s string) bool {
	return s == EncryptThenMac || s == MacThenEncrypt || s == EncryptAndMac
}

// standard names of the JCA providers, by engine class, in lower case
var (
	cipherAlgorithms = setOf("aes", "aes_128", "aes_192", "aes_256", "aeswrap", "aeswrap_128", "aeswrap_192",
		"aeswrap_256", "arcfour", "rc4", "blowfish", "chacha20", "chacha20-poly1305", "des", "desede", "tripledes",
		"desedewrap", "ecies", "rc2", "rc5", "rsa", "rsa/ecb", "sm4", "twofish", "camellia", "seed", "idea")
	cipherModes = setOf("none", "cbc", "ccm", "cfb", "ctr", "cts", "ecb", "gcm", "ofb", "pcbc", "kw", "kwp", "gcm-siv",
		"poly1305")
	cipherPaddings = setOf("nopadding", "iso10126padding", "oaeppadding", "pkcs1padding", "pkcs5padding",
		"pkcs7padding", "ssl3padding", "zerobytepadding", "iso7816-4padding")
	secretKeyFactories = setOf("aes", "arcfour", "des", "desede", "tripledes")
	secureRandoms      = setOf("sha1prng", "nativeprng", "nativeprngblocking", "nativeprngnonblocking", "drbg",
		"windows-prng")
	keyAgreements = setOf("diffiehellman", "dh", "ecdh", "ecmqv", "x25519", "x448", "xdh")
	digests       = setOf("md2", "md4", "md5", "sha", "sha1", "sha-1", "sha-224", "sha-256", "sha-384", "sha-512",
		"sha224", "sha256", "sha384", "sha512", "sha-512/224", "sha-512/256", "sha3-224", "sha3-256", "sha3-384",
		"sha3-512")
	macs = setOf("hmacmd5", "hmacsha1", "hmacsha224", "hmacsha256", "hmacsha384", "hmacsha512", "hmacsha512/224",
		"hmacsha512/256", "hmacsha3-224", "hmacsha3-256", "hmacsha3-384", "hmacsha3-512", "hmacpbesha1",
		"hmacpbesha256", "aescmac")

	sizedMode      = regexp.MustCompile(`^(cfb|ofb)\d+$`)
	oaepPadding    = regexp.MustCompile(`^oaepwith[a-z0-9-]+and[a-z0-9]+padding$`)
	pbeAlgorithm   = regexp.MustCompile(`^pbewith[a-z0-9]+and[a-z0-9_-]+$`)
	pbkdfAlgorithm = regexp.MustCompile(`^pbkdf2with(hmac)?[a-z0-9-]+(and[a-z0-9]+)?$`)
)

func setOf(names ...string) map[string]bool {
	res := make(map[string]bool, len(names))
	for _, n := range names {
		res[n] = true
	}
	return res
}

// IsRecognizedAlgorithm returns true if s is a standard name accepted by one of the cipher, secret key factory,
// secure random, key agreement, digest or MAC engines. Cipher transformations ("AES/CBC/PKCS5Padding") are accepted
// when each of their components is.
func IsRecognizedAlgorithm(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return false
	}
	if isCipherTransformation(t) {
		return true
	}
	return secretKeyFactories[t] || secureRandoms[t] || keyAgreements[t] || digests[t] || macs[t] ||
		pbeAlgorithm.MatchString(t) || pbkdfAlgorithm.MatchString(t)
}

func isCipherTransformation(t string) bool {
	parts := strings.Split(t, "/")
	switch len(parts) {
	case 1:
		return cipherAlgorithms[t] || pbeAlgorithm.MatchString(t)
	case 3:
		alg, mode, padding := parts[0], parts[1], parts[2]
		if !cipherAlgorithms[alg] && !pbeAlgorithm.MatchString(alg) {
			return false
		}
		if !cipherModes[mode] && !sizedMode.MatchString(mode) {
			return false
		}
		return cipherPaddings[padding] || oaepPadding.MatchString(padding)
	}
	return false
}

// algorithmPattern matches the algorithm tokens of a targetAlgorithms entry. An entry "ALG" matches "ALG" and
// transformations of ALG; an entry "ALG-X" matches them only when they do not mention X.
type algorithmPattern struct {
	name    string
	exclude string
	regex   *regexp.Regexp
}

func compileAlgorithm(name string) (algorithmPattern, error) {
	prefix, exclude, _ := strings.Cut(name, "-")
	r, err := regexp.Compile("(?i)^(" + prefix + ")?(/.*)?$")
	if err != nil {
		return algorithmPattern{}, fmt.Errorf("invalid algorithm %q: %w", name, err)
	}
	return algorithmPattern{name: name, exclude: strings.ToLower(exclude), regex: r}, nil
}

// matches returns true if the token is a recognized algorithm matched by the pattern
func (a algorithmPattern) matches(token string) bool {
	if token == "" || !IsRecognizedAlgorithm(token) {
		return false
	}
	if strings.EqualFold(token, a.name) {
		return true
	}
	upper := strings.ToUpper(token)
	if strings.Contains(upper, "PBE") && strings.Contains(upper, strings.ToUpper(a.name)) {
		return true
	}
	if !a.regex.MatchString(token) {
		return false
	}
	return a.exclude == "" || !strings.Contains(strings.ToLower(token), a.exclude)
}

func anyAlgorithm(patterns []algorithmPattern, tokens []string) bool {
	for _, t := range tokens {
		for _, a := range patterns {
			if a.matches(t) {
				return true
			}
		}
	}
	return false
}
