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
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"io"
	"testing"

	"github.com/awslabs/cryptoslice/analysis/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	rules, err := Load("testdata/rules", config.NewLogGroupWithLevel(config.ErrLevel, io.Discard))
	require.NoError(t, err)
	require.Len(t, rules, 3)
	var numbers []int
	var names []string
	for _, r := range rules {
		numbers = append(numbers, r.Number())
		names = append(names, r.Name)
	}
	assert.Equal(t, []int{1, 2, 3}, numbers)
	assert.Equal(t, []string{"ecb-mode.json", "constant-key.yml", "static-iv.yaml"}, names)

	ecb := rules[0]
	assert.Equal(t, []int{0}, ecb.SlicingSignatures()[
		"<javax.crypto.Cipher: javax.crypto.Cipher getInstance(java.lang.String)>"])
	require.NotNil(t, ecb.Secure)
	assert.Equal(t, "1-2", ecb.Secure.RuleID)
	assert.Len(t, ecb.Patterns(), 2)

	key := rules[1]
	assert.Nil(t, key.Secure)
	assert.Len(t, key.Patterns(), 1)
	require.Len(t, key.Insecure.Conditions, 1)
	assert.True(t, key.Insecure.Conditions[0].IsAnyConstant())
}

func TestLoadAll(t *testing.T) {
	rules, invalid, err := LoadAll("testdata/rules")
	require.NoError(t, err)
	assert.Len(t, rules, 3)
	require.Len(t, invalid, 1)
	var fe *FileError
	require.ErrorAs(t, invalid[0], &fe)
	assert.Equal(t, "broken.json", fe.File)
	assert.Contains(t, invalid[0].Error(), "broken.json")
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load("testdata/missing", config.NewLogGroupWithLevel(config.ErrLevel, io.Discard))
	assert.Error(t, err)
}

const ruleHeader = `
slicingSignatures:
  "<javax.crypto.Cipher: javax.crypto.Cipher getInstance(java.lang.String)>": [0]
insecureRule:
  ruleID: "4-1"
  description: test
`

func TestParseConditions(t *testing.T) {
	object, err := Parse([]byte(ruleHeader + `
  conditions:
    targetAlgorithms: ["DES"]
    targetConstantRegex: "[0-9]+"
    targetConstantSize: "x < 2048"
`))
	require.NoError(t, err)
	require.Len(t, object.Insecure.Conditions, 1)
	c := object.Insecure.Conditions[0]
	assert.Equal(t, map[Check]bool{CheckAlgorithms: true, CheckConstant: true}, c.Checks())
	assert.True(t, c.Regex().MatchString("1024"))
	assert.False(t, c.Regex().MatchString("a1024"))

	list, err := Parse([]byte(ruleHeader + `
  conditions:
    - targetSchemeTypes: [encrypt-and-mac]
    - requiredSchemeTypes: [encrypt-then-mac]
      targetSignatures: ["<javax.crypto.Mac: byte[] doFinal(byte[])>"]
`))
	require.NoError(t, err)
	require.Len(t, list.Insecure.Conditions, 2)
	assert.Equal(t, []string{EncryptAndMac}, list.Insecure.Conditions[0].SchemeTypes())
	assert.Equal(t, map[Check]bool{CheckSchemeTypes: true, CheckSignatures: true}, list.Insecure.Conditions[1].Checks())

	_, err = Parse([]byte(ruleHeader + `
  conditions: DES
`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, conditions := range map[string]string{
		"no check":       `{}`,
		"bad regex":      `{targetConstantRegex: "("}`,
		"bad scheme":     `{targetSchemeTypes: [mac-only]}`,
		"bad signature":  `{targetSignatures: ["nextBytes"]}`,
		"bad expression": `{targetConstantRegex: ".*", targetConstantLength: "16"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(ruleHeader + "  conditions: " + conditions + "\n"))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte(`
slicingSignatures:
  "<javax.crypto.Cipher: javax.crypto.Cipher getInstance(java.lang.String)>": [0]
insecureRule:
  ruleID: "x-1"
  conditions: {targetAlgorithms: [DES]}
`))
	assert.ErrorContains(t, err, "does not start with a number")

	_, err = Parse([]byte(`
slicingSignatures: {}
unknownKey: 1
`))
	assert.Error(t, err)
}

func TestIsRecognizedAlgorithm(t *testing.T) {
	for _, tc := range []struct {
		token    string
		expected bool
	}{
		{"AES", true},
		{"aes/cbc/pkcs5padding", true},
		{"AES/GCM/NoPadding", true},
		{"DESede/ECB/PKCS5Padding", true},
		{"AES/CFB8/NoPadding", true},
		{"RSA/ECB/OAEPWithSHA-256AndMGF1Padding", true},
		{"PBEWithMD5AndDES", true},
		{"PBKDF2WithHmacSHA256", true},
		{"SHA1PRNG", true},
		{"SHA-256", true},
		{"HmacSHA256", true},
		{"ECDH", true},
		{"AES/ECB", false},
		{"AES/XYZ/NoPadding", false},
		{"hello", false},
		{"", false},
	} {
		assert.Equal(t, tc.expected, IsRecognizedAlgorithm(tc.token), tc.token)
	}
}

func TestAlgorithmPattern(t *testing.T) {
	for _, tc := range []struct {
		algorithm string
		token     string
		expected  bool
	}{
		{"AES/ECB", "AES/ECB/PKCS5Padding", true},
		{"AES/ECB", "AES/GCM/NoPadding", false},
		{"AES", "aes", true},
		{"AES", "AES/CBC/PKCS5Padding", true},
		{"AES-GCM", "AES/CBC/PKCS5Padding", true},
		{"AES-GCM", "AES/GCM/NoPadding", false},
		{"DES", "DESede", false},
		{"DES", "DES/CBC/PKCS5Padding", true},
		{"MD5", "PBEWithMD5AndDES", true},
		{"AES", "Hello", false},
	} {
		p, err := compileAlgorithm(tc.algorithm)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, p.matches(tc.token), "%s on %s", tc.algorithm, tc.token)
	}
}

func TestSchemeTypes(t *testing.T) {
	assert.True(t, IsSchemeType(EncryptThenMac))
	assert.True(t, IsSchemeType(MacThenEncrypt))
	assert.True(t, IsSchemeType(EncryptAndMac))
	assert.False(t, IsSchemeType("encrypt-only"))
}

func TestRSAModulusBits(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	bits, ok := rsaModulusBits(base64.StdEncoding.EncodeToString(pub))
	assert.True(t, ok)
	assert.Equal(t, 1024, bits)

	bits, ok = rsaModulusBits(hex.EncodeToString(x509.MarshalPKCS1PrivateKey(key)))
	assert.True(t, ok)
	assert.Equal(t, 1024, bits)

	_, ok = rsaModulusBits("0123456789abcdef")
	assert.False(t, ok)
	_, ok = rsaModulusBits("not a key!")
	assert.False(t, ok)
}
