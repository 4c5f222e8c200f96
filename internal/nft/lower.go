package nft

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"grimm.is/nftgraph/internal/eval"
	"grimm.is/nftgraph/internal/graph"
	"grimm.is/nftgraph/internal/metrics"
	"grimm.is/nftgraph/internal/predicate"
	"grimm.is/nftgraph/internal/validation"
)

// Lowerer compiles one condition path at a time into chain and rule objects
// for a fixed table.
type Lowerer struct {
	table  string
	family string
}

// NewLowerer returns a lowerer emitting into the named table.
func NewLowerer(table, family string) *Lowerer {
	return &Lowerer{table: table, family: family}
}

// lowering is the per-path state machine. Matches accumulate in pending
// until a chain-emitting predicate flushes them into a rule; names count up
// from a canonical hash of the whole path so reruns of the same graph emit
// the same ruleset.
type lowering struct {
	l          *Lowerer
	pending    []Statement
	isIncoming bool
	counter    uint64
	objects    []Object
}

// LowerPath compiles a complete condition path. On failure nothing is
// emitted for this path; the error carries a structured code and never
// aborts sibling paths (the exporter decides that).
func (l *Lowerer) LowerPath(path predicate.Path) ([]Object, error) {
	st := &lowering{
		l:          l,
		isIncoming: true,
		counter:    predicate.Seed(path),
	}

	for _, pred := range path {
		done, err := st.step(pred)
		if err != nil {
			metrics.Get().LoweringFailures.WithLabelValues(eval.CodeOf(err)).Inc()
			return nil, err
		}
		if done {
			return st.objects, nil
		}
	}

	if len(st.pending) > 0 {
		err := eval.NewErrorf(eval.CodeIncompletePath,
			"path ends with %d unflushed match(es)", len(st.pending))
		metrics.Get().LoweringFailures.WithLabelValues(err.Code).Inc()
		return nil, err
	}
	return st.objects, nil
}

// step consumes one predicate. It returns done=true when a terminal verdict
// ends the path.
func (st *lowering) step(pred predicate.Predicate) (bool, error) {
	switch pred.Variant {
	case graph.KindSource:
		st.isIncoming = true
		return false, nil

	case graph.KindLocalhost:
		// Inbound traffic must be accepted explicitly to reach the host;
		// everything else hitting this chain is dropped by policy.
		st.flush(TypeFilter, HookInput, PrioFilter, PolicyDrop, AcceptStmt())
		st.isIncoming = false
		return false, nil

	case graph.KindDrop:
		hook := HookOutput
		if st.isIncoming {
			hook = HookInput
		}
		st.flush(TypeFilter, hook, PrioFilter, PolicyAccept, DropStmt())
		return true, nil

	case graph.KindAccept:
		st.flush(TypeFilter, HookOutput, PrioFilter, PolicyAccept, AcceptStmt())
		return true, nil

	case graph.KindFamilySplitter:
		family, _ := pred.Param("family")
		if family != graph.BranchIPv4 && family != graph.BranchIPv6 {
			return false, eval.NewErrorf(eval.CodeConfiguration, "splitter predicate has family %q", family)
		}
		st.pending = append(st.pending, MatchStmt(OpEq, MetaKey("nfproto"), Str(family)))
		return false, nil

	case graph.KindSourceAddrFilter:
		return false, st.filterMatch(pred, func(op string) ([]Statement, error) {
			return addressMatch(op, pred, "saddr")
		})

	case graph.KindDestAddrFilter:
		return false, st.filterMatch(pred, func(op string) ([]Statement, error) {
			return addressMatch(op, pred, "daddr")
		})

	case graph.KindSourcePortFilter:
		return false, st.filterMatch(pred, func(op string) ([]Statement, error) {
			return portMatch(op, pred, "sport")
		})

	case graph.KindDestPortFilter:
		return false, st.filterMatch(pred, func(op string) ([]Statement, error) {
			return portMatch(op, pred, "dport")
		})

	case graph.KindProtocolFilter:
		return false, st.filterMatch(pred, func(op string) ([]Statement, error) {
			value, _ := pred.Param("value")
			if err := validation.ValidateProtocol(value); err != nil {
				return nil, eval.NewErrorf(eval.CodeConfiguration, "protocol filter: %v", err)
			}
			return []Statement{MatchStmt(op, MetaKey("l4proto"), Str(value))}, nil
		})

	case graph.KindInterfaceFilter:
		return false, st.filterMatch(pred, func(op string) ([]Statement, error) {
			value, _ := pred.Param("value")
			if err := validation.ValidateInterfaceName(value); err != nil {
				return nil, eval.NewErrorf(eval.CodeConfiguration, "interface filter: %v", err)
			}
			key := "oifname"
			if st.isIncoming {
				key = "iifname"
			}
			return []Statement{MatchStmt(op, MetaKey(key), Str(value))}, nil
		})

	case graph.KindSourceNAT:
		return false, st.nat(pred, true)

	case graph.KindDestNAT:
		return false, st.nat(pred, false)

	case graph.KindFileIPList:
		return false, eval.NewError(eval.CodeUnsupportedLowering,
			"file-based IP lists cannot be lowered yet")
	}

	return false, eval.NewErrorf(eval.CodeUnknownNodeKind, "no lowering for predicate %q", pred.Variant)
}

// filterMatch resolves the filter's match/non-match rule into an operator
// and appends the produced statements to pending.
func (st *lowering) filterMatch(pred predicate.Predicate, build func(op string) ([]Statement, error)) error {
	rule, _ := pred.Param("rule")
	var op string
	switch rule {
	case graph.BranchMatch:
		op = OpEq
	case graph.BranchNonMatch:
		op = OpNeq
	default:
		return eval.NewErrorf(eval.CodeConfiguration, "filter predicate has rule %q", rule)
	}
	stmts, err := build(op)
	if err != nil {
		return err
	}
	st.pending = append(st.pending, stmts...)
	return nil
}

// nat flushes a NAT chain rewriting the packet's source (snat=true) or
// destination, then re-anchors pending on the rewritten address so the
// path's remaining matches see post-NAT packets.
func (st *lowering) nat(pred predicate.Predicate, snat bool) error {
	target, _ := pred.Param("addr")
	host, port, family, err := splitNATTarget(target)
	if err != nil {
		return err
	}

	spec := &NATSpec{Addr: host, Family: family, Port: port}
	var stmt Statement
	prio := PrioDNAT
	if snat {
		stmt = Statement{SNAT: spec}
		prio = PrioSNAT
	} else {
		stmt = Statement{DNAT: spec}
	}

	hook := HookOutput
	if st.isIncoming {
		hook = HookInput
	}
	st.flush(TypeNAT, hook, prio, PolicyAccept, stmt)

	// Post-NAT anchor: the rest of the path matches the rewritten packet.
	field := "daddr"
	if snat {
		field = "saddr"
	}
	st.pending = []Statement{MatchStmt(OpEq, PayloadField(family, field), Str(host))}
	return nil
}

// flush emits one chain plus one rule holding the pending matches and the
// given trailing statement, then clears pending.
func (st *lowering) flush(chainType, hook string, prio int, policy string, trailing Statement) {
	name := fmt.Sprintf("chain_%x", st.counter)
	st.counter++

	st.objects = append(st.objects,
		Object{Chain: &Chain{
			Family: st.l.family,
			Table:  st.l.table,
			Name:   name,
			Type:   chainType,
			Hook:   hook,
			Prio:   prio,
			Policy: policy,
		}},
		Object{Rule: &Rule{
			Family: st.l.family,
			Table:  st.l.table,
			Chain:  name,
			Expr:   append(append([]Statement{}, st.pending...), trailing),
		}},
	)
	st.pending = nil

	metrics.Get().ChainsEmitted.Inc()
	metrics.Get().RulesEmitted.Inc()
}

// addressMatch builds a source or destination address match, accepting a
// plain IP or a CIDR.
func addressMatch(op string, pred predicate.Predicate, field string) ([]Statement, error) {
	value, _ := pred.Param("value")

	if strings.Contains(value, "/") {
		_, ipnet, err := net.ParseCIDR(value)
		if err != nil {
			return nil, eval.NewErrorf(eval.CodeConfiguration, "address filter: bad CIDR %q", value)
		}
		ones, _ := ipnet.Mask.Size()
		return []Statement{MatchStmt(op,
			PayloadField(protoFor(ipnet.IP), field),
			CIDR(ipnet.IP.String(), ones),
		)}, nil
	}

	ip := net.ParseIP(value)
	if ip == nil {
		return nil, eval.NewErrorf(eval.CodeConfiguration, "address filter: bad address %q", value)
	}
	return []Statement{MatchStmt(op, PayloadField(protoFor(ip), field), Str(value))}, nil
}

// portMatch builds an L4 port match gated on tcp/udp, the only protocols
// carrying ports here.
func portMatch(op string, pred predicate.Predicate, field string) ([]Statement, error) {
	value, _ := pred.Param("value")
	port, err := strconv.Atoi(value)
	if err != nil {
		return nil, eval.NewErrorf(eval.CodeConfiguration, "port filter: bad port %q", value)
	}
	if err := validation.ValidatePortNumber(port); err != nil {
		return nil, eval.NewErrorf(eval.CodeConfiguration, "port filter: %v", err)
	}
	return []Statement{
		MatchStmt(OpIn, MetaKey("l4proto"), SetOf(Str("tcp"), Str("udp"))),
		MatchStmt(op, PayloadField("th", field), Num(port)),
	}, nil
}

// splitNATTarget parses "addr" or "addr:port" (with bracket syntax for
// IPv6) into its parts plus the address family tag NAT statements need in
// an inet table.
func splitNATTarget(target string) (host string, port int, family string, err error) {
	host = target
	if h, p, splitErr := net.SplitHostPort(target); splitErr == nil {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return "", 0, "", eval.NewErrorf(eval.CodeConfiguration, "nat target: bad port %q", p)
		}
		if err := validation.ValidatePortNumber(n); err != nil {
			return "", 0, "", eval.NewErrorf(eval.CodeConfiguration, "nat target: %v", err)
		}
		host, port = h, n
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "", 0, "", eval.NewErrorf(eval.CodeConfiguration, "nat target: bad address %q", host)
	}
	return host, port, protoFor(ip), nil
}

func protoFor(ip net.IP) string {
	if ip.To4() != nil {
		return "ip"
	}
	return "ip6"
}
