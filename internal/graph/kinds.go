package graph

import (
	"fmt"
	"strings"
)

// Built-in kind tags. Custom kinds use "<plugin>:<node>" and are resolved
// against the plugin registry at evaluation time.
const (
	KindSource           = "core:source"
	KindLocalhost        = "core:localhost"
	KindDrop             = "core:drop"
	KindAccept           = "core:accept"
	KindFamilySplitter   = "core:family_splitter"
	KindSourceAddrFilter = "core:source_address_filter"
	KindDestAddrFilter   = "core:destination_address_filter"
	KindSourcePortFilter = "core:source_port_filter"
	KindDestPortFilter   = "core:destination_port_filter"
	KindProtocolFilter   = "core:protocol_filter"
	KindInterfaceFilter  = "core:interface_filter"
	KindSourceNAT        = "core:source_nat"
	KindDestNAT          = "core:destination_nat"
	KindFileIPList       = "core:file_ip_list"
)

// Branch names shared by the filter kinds and the splitter.
const (
	BranchMatch    = "match"
	BranchNonMatch = "non-match"
	BranchIPv4     = "ipv4"
	BranchIPv6     = "ipv6"
)

const corePrefix = "core:"

// Kind tags a node with what it does. Built-ins carry their configuration in
// Value (an address, port, protocol, interface, NAT target, or list file);
// custom kinds carry an open params map owned by the plugin's script.
type Kind struct {
	Tag    string
	Value  string
	Params map[string]string
}

// IsCustom reports whether the kind refers to a plugin node.
func (k Kind) IsCustom() bool {
	return !strings.HasPrefix(k.Tag, corePrefix)
}

// PluginRef splits a custom tag into its plugin and node ids.
func (k Kind) PluginRef() (pluginID, nodeID string, ok bool) {
	if !k.IsCustom() {
		return "", "", false
	}
	plugin, node, found := strings.Cut(k.Tag, ":")
	if !found || plugin == "" || node == "" {
		return "", "", false
	}
	return plugin, node, true
}

// HasValue reports whether the kind takes a configured value.
func (k Kind) HasValue() bool {
	switch k.Tag {
	case KindSourceAddrFilter, KindDestAddrFilter, KindSourcePortFilter,
		KindDestPortFilter, KindProtocolFilter, KindInterfaceFilter,
		KindSourceNAT, KindDestNAT, KindFileIPList:
		return true
	}
	return false
}

// PortDef describes one port of a template.
type PortDef struct {
	Name string
	Type PortType
}

// Template is an instantiable node shape: its kind tag, display label, and
// port layout. Source and Localhost exist as templates so seeding and loading
// can build them, but they are excluded from the palette.
type Template struct {
	Tag     string
	Label   string
	Inputs  []PortDef
	Outputs []PortDef
}

func filterPorts() ([]PortDef, []PortDef) {
	in := []PortDef{{Name: "in", Type: PortType{Family: FamilyInet, Direction: DirEither}}}
	out := []PortDef{
		{Name: BranchMatch, Type: PortType{Family: FamilyInet, Direction: DirEither}},
		{Name: BranchNonMatch, Type: PortType{Family: FamilyInet, Direction: DirEither}},
	}
	return in, out
}

func builtinTemplates() []Template {
	var ts []Template

	ts = append(ts, Template{
		Tag:   KindSource,
		Label: "Source",
		Outputs: []PortDef{
			{Name: "incoming", Type: PortType{Family: FamilyInet, Direction: DirIncoming}},
		},
	})

	ts = append(ts, Template{
		Tag:   KindLocalhost,
		Label: "Localhost",
		Inputs: []PortDef{
			{Name: "incoming", Type: PortType{Family: FamilyInet, Direction: DirIncoming}},
		},
		Outputs: []PortDef{
			{Name: "outgoing", Type: PortType{Family: FamilyInet, Direction: DirOutgoing}},
		},
	})

	ts = append(ts, Template{
		Tag:   KindDrop,
		Label: "Drop",
		Inputs: []PortDef{
			{Name: "in", Type: PortType{Family: FamilyInet, Direction: DirEither}},
		},
	})

	ts = append(ts, Template{
		Tag:   KindAccept,
		Label: "Accept",
		Inputs: []PortDef{
			{Name: "outgoing", Type: PortType{Family: FamilyInet, Direction: DirOutgoing}},
		},
	})

	ts = append(ts, Template{
		Tag:   KindFamilySplitter,
		Label: "Family Splitter",
		Inputs: []PortDef{
			{Name: "in", Type: PortType{Family: FamilyInet, Direction: DirEither}},
		},
		Outputs: []PortDef{
			{Name: BranchIPv4, Type: PortType{Family: FamilyIPv4, Direction: DirEither}},
			{Name: BranchIPv6, Type: PortType{Family: FamilyIPv6, Direction: DirEither}},
		},
	})

	filters := []struct {
		tag   string
		label string
	}{
		{KindSourceAddrFilter, "Source Address Filter"},
		{KindDestAddrFilter, "Destination Address Filter"},
		{KindSourcePortFilter, "Source Port Filter"},
		{KindDestPortFilter, "Destination Port Filter"},
		{KindProtocolFilter, "Protocol Filter"},
		{KindInterfaceFilter, "Interface Filter"},
		{KindFileIPList, "File IP List"},
	}
	for _, f := range filters {
		in, out := filterPorts()
		ts = append(ts, Template{Tag: f.tag, Label: f.label, Inputs: in, Outputs: out})
	}

	for _, nat := range []struct {
		tag   string
		label string
	}{
		{KindSourceNAT, "Source NAT"},
		{KindDestNAT, "Destination NAT"},
	} {
		ts = append(ts, Template{
			Tag:   nat.tag,
			Label: nat.label,
			Inputs: []PortDef{
				{Name: "in", Type: PortType{Family: FamilyInet, Direction: DirEither}},
			},
			Outputs: []PortDef{
				{Name: "out", Type: PortType{Family: FamilyInet, Direction: DirEither}},
			},
		})
	}

	return ts
}

// Palette returns the built-in templates a user may instantiate. Source and
// Localhost are seeded per project and never offered here.
func Palette() []Template {
	var out []Template
	for _, t := range builtinTemplates() {
		if t.Tag == KindSource || t.Tag == KindLocalhost {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TemplateFor returns the built-in template for tag, seeded kinds included.
func TemplateFor(tag string) (Template, error) {
	for _, t := range builtinTemplates() {
		if t.Tag == tag {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("unknown node kind %q", tag)
}
