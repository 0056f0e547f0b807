package cfg

import (
	"github.com/panbanda/csflow/pkg/syntax"
)

func (b *builder) buildStatements(list []*syntax.Node) {
	for i := len(list) - 1; i >= 0; i-- {
		b.buildStatement(list[i])
	}
}

func (b *builder) buildStatement(n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindBlock, syntax.KindList:
		b.buildStatements(n.Children())
	case syntax.KindEmpty:
	case syntax.KindExpressionStatement:
		b.buildExpression(n.Slot(0))
	case syntax.KindLocalDeclaration:
		b.buildDeclarators(n)
	case syntax.KindLocalFunction:
		b.add(n)
	case syntax.KindIf:
		b.buildIf(n)
	case syntax.KindWhile:
		b.buildWhile(n)
	case syntax.KindDo:
		b.buildDo(n)
	case syntax.KindFor:
		b.buildFor(n)
	case syntax.KindForeach:
		b.buildForeach(n)
	case syntax.KindSwitch:
		b.buildSwitch(n)
	case syntax.KindTry:
		b.buildTry(n)
	case syntax.KindLock:
		b.buildLock(n)
	case syntax.KindUsing:
		b.buildUsing(n)
	case syntax.KindFixed:
		b.buildStatement(n.Slot(1))
		b.current = b.newJump(n, b.current)
		b.buildDeclarators(n.Slot(0))
	case syntax.KindChecked, syntax.KindUnsafe:
		b.buildStatement(n.Slot(0))
		b.current = b.newJump(n, b.current)
	case syntax.KindLabeled:
		b.buildStatement(n.Slot(0))
		label := b.newJump(n, b.current)
		b.labels[n.Name] = label
		b.current = b.newSimple(label)
	case syntax.KindGoto:
		jump := b.newJump(n, nil)
		b.gotos = append(b.gotos, pendingGoto{jump: jump, key: n.Name})
		b.current = jump
	case syntax.KindGotoCase, syntax.KindGotoDefault:
		b.buildGotoCase(n)
	case syntax.KindReturn, syntax.KindThrow:
		b.current = b.newJump(n, b.exitTarget())
		b.buildExpression(n.Slot(0))
	case syntax.KindYieldBreak:
		b.current = b.newJump(n, b.exitTarget())
	case syntax.KindYieldReturn:
		b.current = b.newJump(n, b.current)
		b.buildExpression(n.Slot(0))
	case syntax.KindBreak:
		b.jumpOut(n, b.breaks)
	case syntax.KindContinue:
		b.jumpOut(n, b.continues)
	default:
		if n.Kind.IsExpression() {
			b.buildExpression(n)
			return
		}
		b.add(n)
		ops := Operands(n)
		for i := len(ops) - 1; i >= 0; i-- {
			b.buildExpression(ops[i])
		}
	}
}

// buildDeclarators emits each declarator after its initializer.
func (b *builder) buildDeclarators(decl *syntax.Node) {
	if decl == nil {
		return
	}
	if decl.Kind != syntax.KindLocalDeclaration {
		b.buildExpression(decl)
		return
	}
	ds := decl.Children()
	for i := len(ds) - 1; i >= 0; i-- {
		b.add(ds[i])
		b.buildExpression(ds[i].Slot(0))
	}
}

func (b *builder) buildIf(n *syntax.Node) {
	after := b.current

	elseEntry := after
	if els := n.Slot(2); els != nil {
		b.current = b.newSimple(after)
		b.buildStatement(els)
		elseEntry = b.current
	}

	b.current = b.newSimple(after)
	b.buildStatement(n.Slot(1))
	thenEntry := b.current

	b.buildCondition(n.Slot(0), thenEntry, elseEntry)
}

func (b *builder) buildWhile(n *syntax.Node) {
	after := b.current
	header := b.newTemp()

	b.pushLoop(after, header)
	b.current = b.newSimple(header)
	b.buildStatement(n.Slot(1))
	bodyEntry := b.current
	b.popLoop()

	condEntry := b.buildCondition(n.Slot(0), bodyEntry, after)
	header.target = condEntry
	b.current = b.newSimple(condEntry)
}

func (b *builder) buildDo(n *syntax.Node) {
	after := b.current
	body := b.newTemp()

	condEntry := b.buildCondition(n.Slot(1), body, after)

	b.pushLoop(after, condEntry)
	b.current = b.newSimple(condEntry)
	b.buildStatement(n.Slot(0))
	body.target = b.current
	b.popLoop()

	b.current = b.newSimple(body.target)
}

func (b *builder) buildFor(n *syntax.Node) {
	after := b.current
	cond := b.newTemp()

	continueTo := cond
	if updates := n.Slot(2).Children(); len(updates) > 0 {
		b.current = b.newSimple(cond)
		for i := len(updates) - 1; i >= 0; i-- {
			b.buildExpression(updates[i])
		}
		continueTo = b.current
	}

	b.pushLoop(after, continueTo)
	b.current = b.newSimple(continueTo)
	b.buildStatement(n.Slot(3))
	bodyEntry := b.current
	b.popLoop()

	// Without a condition the branch still has a false edge; the explorer
	// never takes it.
	b.current = b.newBinaryBranch(n, bodyEntry, after)
	b.buildExpression(n.Slot(1))
	cond.target = b.current

	b.current = b.newBlock(KindForInitializer)
	b.current.Node = n
	b.current.succs = []*Block{cond.target}
	inits := n.Slot(0).Children()
	for i := len(inits) - 1; i >= 0; i-- {
		if inits[i].Kind == syntax.KindDeclarator {
			b.add(inits[i])
			b.buildExpression(inits[i].Slot(0))
			continue
		}
		if inits[i].Kind == syntax.KindLocalDeclaration {
			b.buildDeclarators(inits[i])
			continue
		}
		b.buildExpression(inits[i])
	}
}

func (b *builder) buildForeach(n *syntax.Node) {
	after := b.current
	branch := b.newTemp()

	b.pushLoop(after, branch)
	b.current = b.newSimple(branch)
	b.buildStatement(n.Slot(1))
	bodyEntry := b.current
	b.popLoop()

	branch.target = b.newBinaryBranch(n, bodyEntry, after)

	b.current = b.newBlock(KindForeachCollectionProducer)
	b.current.Node = n
	b.current.succs = []*Block{branch.target}
	b.buildExpression(n.Slot(0))
}

func (b *builder) buildLock(n *syntax.Node) {
	b.buildStatement(n.Slot(1))
	lock := b.newBlock(KindLock)
	lock.Node = n
	lock.succs = []*Block{b.current}
	b.current = lock
	b.buildExpression(n.Slot(0))
}

func (b *builder) buildUsing(n *syntax.Node) {
	after := b.current
	resource := n.Slot(0)

	end := b.newBlock(KindUsingEnd)
	end.Node = n
	end.succs = []*Block{after}
	end.Disposed = disposedBy(resource)

	b.current = end
	b.buildStatement(n.Slot(1))

	using := b.newBlock(KindUsing)
	using.Node = n
	using.succs = []*Block{b.current}
	b.current = using
	b.buildDeclarators(resource)
}

// disposedBy returns the nodes naming the entities a using resource
// releases: the declarators of a declaration, or the identifier of an
// assignment or plain reference.
func disposedBy(resource *syntax.Node) []*syntax.Node {
	resource = syntax.StripParens(resource)
	switch {
	case resource == nil:
		return nil
	case resource.Kind == syntax.KindLocalDeclaration:
		return resource.Children()
	case resource.Kind == syntax.KindIdentifier:
		return []*syntax.Node{resource}
	case resource.Kind == syntax.KindAssignment && isIdentifierTarget(resource.Slot(0)):
		return []*syntax.Node{syntax.StripParens(resource.Slot(0))}
	}
	return nil
}

func (b *builder) buildTry(n *syntax.Node) {
	after := b.current
	exitTarget := b.exitTarget()

	normal, uncaught := after, exitTarget
	var scope *finallyScope
	if fin := n.Slot(2); fin != nil {
		b.current = b.newSimple(after)
		b.buildStatement(fin)
		normal = b.current

		tail := b.newSimple(exitTarget)
		b.current = tail
		b.buildStatement(fin)
		uncaught = b.current
		scope = &finallyScope{entry: uncaught, tail: tail}

		b.finallies = append(b.finallies, scope)
		b.exits = append(b.exits, uncaught)
	}

	catches := n.Slot(1).Children()
	entries := make([]*Block, len(catches))
	catchAll := false
	for i := len(catches) - 1; i >= 0; i-- {
		c := catches[i]
		b.current = b.newSimple(normal)
		b.buildStatement(c.Slot(1))
		entry := b.current
		if filter := c.Slot(0); filter != nil {
			next := uncaught
			if i+1 < len(entries) {
				next = entries[i+1]
			}
			b.current = b.newBinaryBranch(filter, entry, next)
			b.buildExpression(filter)
			entry = b.current
		} else if isCatchAll(c) {
			catchAll = true
		}
		entries[i] = entry
	}

	endSuccs := append(append([]*Block{}, entries...), normal)
	if !catchAll {
		endSuccs = append(endSuccs, uncaught)
	}
	b.current = b.newBranch(n, endSuccs...)
	b.buildStatement(n.Slot(0))
	bodyEntry := b.current

	if scope != nil {
		b.finallies = b.finallies[:len(b.finallies)-1]
		b.exits = b.exits[:len(b.exits)-1]
	}

	startSuccs := append([]*Block{bodyEntry}, entries...)
	if !catchAll {
		startSuccs = append(startSuccs, uncaught)
	}
	b.current = b.newBranch(n, startSuccs...)
}

func isCatchAll(c *syntax.Node) bool {
	if c.Slot(0) != nil {
		return false
	}
	switch c.TypeText {
	case "", "Exception", "System.Exception", "global::System.Exception":
		return true
	}
	return false
}

func (b *builder) buildSwitch(n *syntax.Node) {
	after := b.current
	sections := n.Slots[1:]

	scope := &switchScope{labels: make(map[string]*Block), after: after}
	b.switches = append(b.switches, scope)
	b.breaks = append(b.breaks, jumpTarget{block: after, depth: len(b.finallies)})

	var dispatch []*Block
	if isPatternSwitch(sections) {
		dispatch = []*Block{b.buildPatternSections(sections, scope)}
	} else {
		dispatch = b.buildConstantSections(sections, scope)
	}

	b.breaks = b.breaks[:len(b.breaks)-1]
	b.switches = b.switches[:len(b.switches)-1]
	for _, g := range scope.pending {
		target, ok := scope.labels[g.key]
		if !ok {
			target = after
		}
		g.jump.succs = []*Block{target}
	}

	b.current = b.newBranch(n, dispatch...)
	b.buildExpression(n.Slot(0))
}

// buildConstantSections builds sections in source order. Every label but
// the last of a section is an empty jump to the next label. The returned
// dispatch successors list every label, then the code after the switch
// when there is no default label.
func (b *builder) buildConstantSections(sections []*syntax.Node, scope *switchScope) []*Block {
	var dispatch []*Block
	hasDefault := false
	for _, sec := range sections {
		if sec == nil {
			continue
		}
		b.current = b.newSimple(scope.after)
		b.buildStatements(sec.Slot(1).Children())
		next := b.current

		labels := sec.Slot(0).Children()
		targets := make([]*Block, len(labels))
		for j := len(labels) - 1; j >= 0; j-- {
			if j < len(labels)-1 {
				next = b.newJump(labels[j], next)
			}
			targets[j] = next
			if labels[j].Kind == syntax.KindDefaultLabel {
				hasDefault = true
			}
			key := labelKey(labels[j])
			if _, seen := scope.labels[key]; !seen {
				scope.labels[key] = next
			}
		}
		dispatch = append(dispatch, targets...)
	}
	if !hasDefault {
		dispatch = append(dispatch, scope.after)
	}
	return dispatch
}

// buildPatternSections builds a chain of tests, one per label, from the
// last section to the first. It returns the first test.
func (b *builder) buildPatternSections(sections []*syntax.Node, scope *switchScope) *Block {
	fallback := b.newTemp()
	next := fallback
	defaultBody := scope.after

	for i := len(sections) - 1; i >= 0; i-- {
		sec := sections[i]
		if sec == nil {
			continue
		}
		b.current = b.newSimple(scope.after)
		b.buildStatements(sec.Slot(1).Children())
		body := b.current

		labels := sec.Slot(0).Children()
		for j := len(labels) - 1; j >= 0; j-- {
			label := labels[j]
			switch label.Kind {
			case syntax.KindDefaultLabel:
				defaultBody = body
				scope.labels[labelKey(label)] = body
				continue
			case syntax.KindPatternCaseLabel:
				target := body
				if when := label.Slot(1); when != nil {
					b.current = b.newBinaryBranch(when, body, next)
					b.buildExpression(when)
					target = b.current
				}
				b.current = b.newBinaryBranch(label, target, next)
				b.add(label.Slot(0))
			default:
				value := syntax.StripParens(label.Slot(0))
				if value.Is(syntax.KindNull) {
					b.current = b.newBranch(label, body, next)
				} else {
					b.current = b.newBinaryBranch(label, body, next)
					b.buildExpression(label.Slot(0))
				}
			}
			next = b.current
			scope.labels[labelKey(label)] = next
		}
	}
	fallback.target = defaultBody
	return next
}

func isPatternSwitch(sections []*syntax.Node) bool {
	for _, sec := range sections {
		for _, l := range sec.Slot(0).Children() {
			if l.Kind == syntax.KindPatternCaseLabel {
				return true
			}
		}
	}
	return false
}

func labelKey(label *syntax.Node) string {
	switch label.Kind {
	case syntax.KindDefaultLabel, syntax.KindGotoDefault:
		return "default"
	case syntax.KindPatternCaseLabel:
		return "case " + label.Slot(0).String()
	}
	return "case " + syntax.StripParens(label.Slot(0)).String()
}

func (b *builder) buildGotoCase(n *syntax.Node) {
	if len(b.switches) == 0 {
		b.current = b.newJump(n, b.exitTarget())
		return
	}
	scope := b.switches[len(b.switches)-1]
	jump := b.newJump(n, nil)
	scope.pending = append(scope.pending, pendingGoto{jump: jump, key: labelKey(n)})
	b.current = jump
}
