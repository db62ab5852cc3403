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

package ir

import "fmt"

// An Instruction is a three-address instruction. The set of instructions is closed: every instruction is one of
// Load, Store, Call, Branch, Return, Phi or Other.
type Instruction interface {
	fmt.Stringer
	// Uses returns the variables read by the instruction
	Uses() []*Variable
	// Defs returns the variables written by the instruction
	Defs() []*Variable
	// Label returns the position of the instruction in the method, used to report diagnostics
	Label() string
	isInstruction()
}

// Position is the label of an instruction
type Position string

// Label returns the position
func (p Position) Label() string { return string(p) }

// Load is Result = Operand
type Load struct {
	Position
	Result  *Variable
	Operand Value
}

// Store is Target = Operand, where the target is a field, an array element or a dereference
type Store struct {
	Position
	Target  Value
	Operand *Variable
}

// Call is Result = Method(Args...). The receiver of an instance method is Args[0]. Result is nil when the call
// returns nothing.
type Call struct {
	Position
	Result *Variable
	Method *Method
	Args   []*Variable
	// Virtual is true when the callee is dispatched dynamically on the receiver
	Virtual bool
}

// Branch is a conditional branch on its Operands
type Branch struct {
	Position
	Operands []*Variable
}

// Return exits the method, returning Operand when it is not nil
type Return struct {
	Position
	Operand *Variable
}

// Phi is Result = phi(Args...)
type Phi struct {
	Position
	Result *Variable
	Args   []*Variable
}

// Other is any other instruction, described by its operator, the variables it reads and those it writes
type Other struct {
	Position
	Op       string
	Results  []*Variable
	Operands []*Variable
}

func (*Load) isInstruction()   {}
func (*Store) isInstruction()  {}
func (*Call) isInstruction()   {}
func (*Branch) isInstruction() {}
func (*Return) isInstruction() {}
func (*Phi) isInstruction()    {}
func (*Other) isInstruction()  {}

func (l *Load) Uses() []*Variable { return l.Operand.Vars() }
func (l *Load) Defs() []*Variable { return []*Variable{l.Result} }

func (s *Store) Uses() []*Variable { return append([]*Variable{s.Operand}, s.Target.Vars()...) }
func (s *Store) Defs() []*Variable { return nil }

func (c *Call) Uses() []*Variable { return c.Args }

func (c *Call) Defs() []*Variable {
	if c.Result == nil {
		return nil
	}
	return []*Variable{c.Result}
}

func (b *Branch) Uses() []*Variable { return b.Operands }
func (b *Branch) Defs() []*Variable { return nil }

func (r *Return) Uses() []*Variable {
	if r.Operand == nil {
		return nil
	}
	return []*Variable{r.Operand}
}

func (r *Return) Defs() []*Variable { return nil }

func (p *Phi) Uses() []*Variable { return p.Args }
func (p *Phi) Defs() []*Variable { return []*Variable{p.Result} }

func (o *Other) Uses() []*Variable { return o.Operands }
func (o *Other) Defs() []*Variable { return o.Results }

func (l *Load) String() string  { return fmt.Sprintf("%s = %s", l.Result, l.Operand) }
func (s *Store) String() string { return fmt.Sprintf("%s = %s", s.Target, s.Operand) }

func (c *Call) String() string {
	call := fmt.Sprintf("%s(%s)", c.Method, joinVars(c.Args))
	if c.Result == nil {
		return call
	}
	return c.Result.Name + " = " + call
}

func (b *Branch) String() string { return "if " + joinVars(b.Operands) }

func (r *Return) String() string {
	if r.Operand == nil {
		return "return"
	}
	return "return " + r.Operand.Name
}

func (p *Phi) String() string { return fmt.Sprintf("%s = phi(%s)", p.Result, joinVars(p.Args)) }

func (o *Other) String() string {
	rhs := fmt.Sprintf("%s(%s)", o.Op, joinVars(o.Operands))
	if len(o.Results) == 0 {
		return rhs
	}
	return joinVars(o.Results) + " = " + rhs
}

// An InstrOp must implement methods for ALL possible instructions
type InstrOp interface {
	DoLoad(*Load)
	DoStore(*Store)
	DoCall(*Call)
	DoBranch(*Branch)
	DoReturn(*Return)
	DoPhi(*Phi)
	DoOther(*Other)
}

// InstrSwitch is mainly a map from the different instructions to the methods of the visitor.
func InstrSwitch(visitor InstrOp, instr Instruction) {
	switch instr := instr.(type) {
	case *Load:
		visitor.DoLoad(instr)
	case *Store:
		visitor.DoStore(instr)
	case *Call:
		visitor.DoCall(instr)
	case *Branch:
		visitor.DoBranch(instr)
	case *Return:
		visitor.DoReturn(instr)
	case *Phi:
		visitor.DoPhi(instr)
	case *Other:
		visitor.DoOther(instr)
	default:
		panic(fmt.Errorf("unknown instruction type %T", instr))
	}
}
