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

package analysistest

import (
	"fmt"

	"github.com/awslabs/cryptoslice/analysis/ir"
)

// Signatures used by the fixtures
const (
	Package      = "com.example.app"
	MainActivity = "com.example.app.MainActivity"
	CryptoHelper = "com.example.app.CryptoHelper"
	Keys         = "com.example.app.Keys"

	GetInstance  = "<javax.crypto.Cipher: javax.crypto.Cipher getInstance(java.lang.String)>"
	CipherInit   = "<javax.crypto.Cipher: void init(int,java.security.Key)>"
	CipherInitIV = "<javax.crypto.Cipher: void init(int,java.security.Key,java.security.spec.AlgorithmParameterSpec)>"
	DoFinal      = "<javax.crypto.Cipher: byte[] doFinal(byte[])>"
	IvSpecInit   = "<javax.crypto.spec.IvParameterSpec: void <init>(byte[])>"
	ObjectInit   = "<java.lang.Object: void <init>()>"
	KeysIV       = "<com.example.app.Keys: byte[] IV>"
	ActivityRun  = "<com.example.app.MainActivity: void onCreate(android.os.Bundle)>"

	ECB = `"AES/ECB/PKCS5Padding"`
	GCM = `"AES/GCM/NoPadding"`
)

// Method returns the signature of a method of the main activity
func Method(subsignature string) string {
	return ir.MethodSignature(MainActivity, subsignature)
}

// NewClass returns a class of the application package
func NewClass(name string, super string, methods ...*ir.Method) *ir.Class {
	return &ir.Class{Name: name, Super: super, Methods: methods}
}

// NewProgram returns the finalized program made of the classes. MainActivity is declared as a component.
// It panics if a method is invalid.
func NewProgram(classes ...*ir.Class) *ir.Program {
	p := ir.NewProgram(Package)
	p.Components = []string{MainActivity}
	for _, c := range classes {
		p.AddClass(c)
	}
	if problems := p.Finalize(); len(problems) > 0 {
		panic(fmt.Sprintf("invalid fixture: %v", problems))
	}
	return p
}

func activity(methods ...*ir.Method) *ir.Class {
	return NewClass(MainActivity, "android.app.Activity", methods...)
}

// DirectLiteral is a method that passes a literal transformation to Cipher.getInstance:
//
//	key = generateAesKey(); cipher = Cipher.getInstance("AES/ECB/PKCS5Padding"); cipher.init(1, key)
func DirectLiteral() *ir.Program {
	sig := Method("byte[] encrypt(byte[])")
	return NewProgram(activity(
		ir.NewMethod(ActivityRun,
			ir.This("r0", MainActivity),
			ir.Param("r1", 0, "android.os.Bundle"),
			ir.CallAssign("$r2", "r0", sig, "null"),
			ir.ReturnVoid()),
		ir.NewMethod(sig,
			ir.This("r0", MainActivity),
			ir.Param("r1", 0, "byte[]"),
			ir.CallAssign("$r2", "r0", Method("javax.crypto.SecretKey generateAesKey()")),
			ir.Assign("$r3", ECB),
			ir.CallAssign("$r4", "", GetInstance, "$r3"),
			ir.Call("$r4", CipherInit, "1", "$r2"),
			ir.CallAssign("$r5", "$r4", DoFinal, "r1"),
			ir.Return("$r5")),
		generateAesKey(),
	))
}

func generateAesKey() *ir.Method {
	return ir.NewMethod(Method("javax.crypto.SecretKey generateAesKey()"),
		ir.This("r0", MainActivity),
		ir.CallAssign("$r1", "", "<javax.crypto.KeyGenerator: javax.crypto.KeyGenerator getInstance(java.lang.String)>",
			`"AES"`),
		ir.CallAssign("$r2", "$r1", "<javax.crypto.KeyGenerator: javax.crypto.SecretKey generateKey()>"),
		ir.Return("$r2"))
}

// LocalAliasing copies the literal through two locals before calling Cipher.getInstance
func LocalAliasing() *ir.Program {
	return NewProgram(activity(
		ir.NewMethod(ActivityRun,
			ir.This("r0", MainActivity),
			ir.Param("r1", 0, "android.os.Bundle"),
			ir.Assign("$r2", ECB),
			ir.Assign("r3", "$r2"),
			ir.Assign("r4", "r3"),
			ir.CallAssign("$r5", "", GetInstance, "r4"),
			ir.ReturnVoid()),
	))
}

// Interprocedural passes the literal to the constructor of a helper that calls Cipher.getInstance with it
func Interprocedural() *ir.Program {
	helperInit := ir.MethodSignature(CryptoHelper, "void <init>(java.lang.String)")
	return NewProgram(
		activity(
			ir.NewMethod(ActivityRun,
				ir.This("r0", MainActivity),
				ir.Param("r1", 0, "android.os.Bundle"),
				ir.New("$r2", CryptoHelper),
				ir.Assign("$r3", ECB),
				ir.Call("$r2", helperInit, "$r3"),
				ir.ReturnVoid())),
		&ir.Class{Name: CryptoHelper, Super: "java.lang.Object",
			Fields:  []ir.Field{{Signature: "<com.example.app.CryptoHelper: javax.crypto.Cipher cipher>"}},
			Methods: []*ir.Method{
				ir.NewMethod(helperInit,
					ir.This("r0", CryptoHelper),
					ir.Param("r1", 0, "java.lang.String"),
					ir.Call("r0", ObjectInit),
					ir.CallAssign("$r2", "", GetInstance, "r1"),
					ir.Assign("r0.<com.example.app.CryptoHelper: javax.crypto.Cipher cipher>", "$r2"),
					ir.ReturnVoid()),
			}},
	)
}

// InfeasibleBranch holds an insecure call on a branch that is never taken:
//
//	if (0 != 0) { getInstance("AES/ECB/PKCS5Padding") } else { getInstance("AES/GCM/NoPadding") }
func InfeasibleBranch() *ir.Program {
	use := Method("void use(javax.crypto.Cipher)")
	return NewProgram(activity(
		ir.NewMethod(ActivityRun,
			ir.This("r0", MainActivity),
			ir.Assign("$i0", "0"),
			ir.If("$i0", "==", "0", 7),
			ir.Assign("$r1", ECB),
			ir.CallAssign("$r2", "", GetInstance, "$r1"),
			ir.Call("r0", use, "$r2"),
			ir.Goto(10),
			ir.Assign("$r3", GCM),
			ir.CallAssign("$r4", "", GetInstance, "$r3"),
			ir.Call("r0", use, "$r4"),
			ir.ReturnVoid()),
		ir.NewMethod(use,
			ir.This("r0", MainActivity),
			ir.Param("r1", 0, "javax.crypto.Cipher"),
			ir.ReturnVoid()),
	))
}

// StaticFieldConstant reads a static final IV built in the static initializer of Keys. When disagree is set, the
// static initializer assigns the field twice with different arrays.
func StaticFieldConstant(disagree bool) *ir.Program {
	clinit := []*ir.Unit{
		ir.NewArray("$r0", "byte", "4"),
		ir.ArrayStore("$r0", "0", "1"),
		ir.ArrayStore("$r0", "1", "2"),
		ir.ArrayStore("$r0", "2", "3"),
		ir.ArrayStore("$r0", "3", "4"),
		ir.Assign(KeysIV, "$r0"),
	}
	if disagree {
		clinit = append(clinit,
			ir.NewArray("$r1", "byte", "4"),
			ir.ArrayStore("$r1", "0", "9"),
			ir.Assign(KeysIV, "$r1"))
	}
	clinit = append(clinit, ir.ReturnVoid())
	return NewProgram(
		activity(
			ir.NewMethod(ActivityRun,
				ir.This("r0", MainActivity),
				ir.Param("r1", 0, "android.os.Bundle"),
				ir.New("$r2", "javax.crypto.spec.IvParameterSpec"),
				ir.Assign("$r3", KeysIV),
				ir.Call("$r2", IvSpecInit, "$r3"),
				ir.ReturnVoid())),
		&ir.Class{Name: Keys, Super: "java.lang.Object",
			Fields:  []ir.Field{{Signature: KeysIV, Static: true, Final: true}},
			Methods: []*ir.Method{{Signature: ir.MethodSignature(Keys, "void <clinit>()"), Static: true, Units: clinit}}},
	)
}
