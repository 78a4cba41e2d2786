// Package program implements the binary graph envelope: the boundary format
// a graph crosses to become a portable artifact (name, file bundle,
// requirements, body table, node table, wiring) without the scheduler or
// graph packages knowing anything about serialization.
package program

import (
	"archive/zip"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/deltaflow/deltaflow/graph"
	"github.com/deltaflow/deltaflow/node"
	"github.com/deltaflow/deltaflow/port"
)

var (
	// ErrUnknownBody is returned by Resolve when a node record names a body
	// reference that the caller's registry does not define.
	ErrUnknownBody = errors.New("program: unknown body reference")

	// ErrUnknownKind is returned by Resolve when a node record's Kind string
	// does not match any node.Kind.
	ErrUnknownKind = errors.New("program: unknown node kind")
)

// PortRecord is the serialized form of one of a node's ports.
type PortRecord struct {
	ID       string
	Optional bool // meaningful for input ports only
	Capacity int  // meaningful for input ports only
}

// NodeRecord is the serialized form of one graph node. BodyRef is empty for
// Splitter nodes (the scheduler supplies their behavior) and otherwise names
// an entry the caller's BodyRegistry must resolve at load time.
type NodeRecord struct {
	ID       string
	Kind     string
	BodyRef  string
	InPorts  []PortRecord
	OutPorts []PortRecord
}

// WireRecord is the serialized form of one producer-to-consumer edge.
type WireRecord struct {
	FromNode, FromPort, FromFanIndex string
	ToNode, ToPort                   string
}

// Program is the complete, portable representation of one graph: a name, an
// arbitrary file bundle (zipped), a requirements list, and the node/wiring
// tables needed to reconstruct the topology given a body registry. It
// carries no live code — BodyRef strings are the only indirection to actual
// node.Body values, resolved by the caller of Resolve.
type Program struct {
	Name         string
	Files        []byte // a zip archive, or nil if no files were bundled
	Requirements []string
	Bodies       []string // distinct BodyRef values referenced by Nodes, for a caller to audit before Resolve
	Nodes        []NodeRecord
	Wiring       []WireRecord
}

// BodyRegistry maps a BodyRef (as stored in NodeRecord.BodyRef) to a factory
// that produces a fresh node.Body instance. Bodies are runtime Go values,
// not serializable data, so the envelope stores only the lookup key; the
// caller of Resolve supplies the actual implementations compiled into the
// binary doing the loading.
type BodyRegistry map[string]func() node.Body

// Build converts a graph into its portable envelope. g is split in place if
// it has not been already (ErrAlreadySplit is tolerated, not an error here).
// bodyRefs maps every non-Splitter node ID to the registry key Resolve will
// later need to look it up; fileSet lists filesystem paths (not patterns) to
// bundle verbatim into Files.
func Build(g *graph.Graph, name string, bodyRefs map[string]string, requirements []string, fileSet []string) (*Program, error) {
	if err := g.Split(); err != nil && !errors.Is(err, graph.ErrAlreadySplit) {
		return nil, fmt.Errorf("program: split: %w", err)
	}

	p := &Program{
		Name:         name,
		Requirements: append([]string(nil), requirements...),
	}

	bodySet := make(map[string]bool)
	for _, h := range g.Nodes() {
		rec := NodeRecord{ID: h.ID, Kind: h.Kind.String()}
		if h.Kind != node.Splitter {
			ref, ok := bodyRefs[h.ID]
			if !ok {
				return nil, fmt.Errorf("program: node %s has no body reference", h.ID)
			}
			rec.BodyRef = ref
			bodySet[ref] = true
		}
		for _, id := range sortedInPortIDs(h) {
			in := h.InPorts[id]
			rec.InPorts = append(rec.InPorts, PortRecord{ID: id, Optional: in.Spec.Optional, Capacity: in.Spec.Capacity})
		}
		for _, id := range sortedOutPortIDs(h) {
			rec.OutPorts = append(rec.OutPorts, PortRecord{ID: id})
		}
		p.Nodes = append(p.Nodes, rec)
	}

	for ref := range bodySet {
		p.Bodies = append(p.Bodies, ref)
	}
	sort.Strings(p.Bodies)

	for _, w := range g.Wires() {
		p.Wiring = append(p.Wiring, WireRecord{
			FromNode: w.From.NodeID, FromPort: w.From.PortID, FromFanIndex: w.From.FanIndex,
			ToNode: w.To.NodeID, ToPort: w.To.PortID,
		})
	}

	if len(fileSet) > 0 {
		data, err := zipFiles(fileSet)
		if err != nil {
			return nil, fmt.Errorf("program: bundling files: %w", err)
		}
		p.Files = data
	}

	return p, nil
}

func sortedInPortIDs(h *node.Handle) []string {
	ids := make([]string, 0, len(h.InPorts))
	for id := range h.InPorts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedOutPortIDs(h *node.Handle) []string {
	ids := make([]string, 0, len(h.OutPorts))
	for id := range h.OutPorts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// zipFiles archives the named files (verbatim paths, not patterns) into a
// single in-memory zip, deduplicating by archive name.
func zipFiles(paths []string) ([]byte, error) {
	seen := make(map[string]bool)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		name := filepath.Base(p)
		if seen[name] {
			continue
		}
		seen[name] = true

		src, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(name)
		if err != nil {
			src.Close()
			return nil, err
		}
		if _, err := io.Copy(w, src); err != nil {
			src.Close()
			return nil, err
		}
		src.Close()
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExtractFiles unzips Files into dir. A Program with no bundled files is a
// no-op.
func (p *Program) ExtractFiles(dir string) error {
	if len(p.Files) == 0 {
		return nil
	}
	zr, err := zip.NewReader(bytes.NewReader(p.Files), int64(len(p.Files)))
	if err != nil {
		return fmt.Errorf("program: reading file bundle: %w", err)
	}
	for _, f := range zr.File {
		if err := extractOne(dir, f); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(dir string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dst, err := os.Create(filepath.Join(dir, filepath.Base(f.Name)))
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, rc)
	return err
}

// TemplateRegistry maps a BodyRef to a factory producing a fresh
// node.TemplateBody, for NodeRecords whose Kind is "template".
type TemplateRegistry map[string]func() *node.TemplateBody

// Resolve reconstructs a graph.Graph from the envelope, looking up each
// node's body via reg (or, for Template nodes, via templates). It does not
// run graph.Split or graph.Check — the caller (typically scheduler.New) is
// responsible for those, exactly as it would be for a graph built directly.
func (p *Program) Resolve(reg BodyRegistry, templates TemplateRegistry) (*graph.Graph, error) {
	g := graph.New()

	for _, rec := range p.Nodes {
		kind, ok := parseKind(rec.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKind, rec.Kind)
		}

		h := &node.Handle{ID: rec.ID, Kind: kind}
		switch kind {
		case node.Splitter:
			// no user body: the scheduler supplies the loop
		case node.Template:
			factory, ok := templates[rec.BodyRef]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownBody, rec.BodyRef)
			}
			h.Template = factory()
		default:
			factory, ok := reg[rec.BodyRef]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownBody, rec.BodyRef)
			}
			h.Body = factory()
		}

		h.InPorts = make(map[string]*node.InPort, len(rec.InPorts))
		for _, pr := range rec.InPorts {
			h.InPorts[pr.ID] = &node.InPort{Spec: port.InSpec{ID: pr.ID, Optional: pr.Optional, Capacity: pr.Capacity}}
		}
		h.OutPorts = make(map[string]*node.OutPort, len(rec.OutPorts))
		for _, pr := range rec.OutPorts {
			h.OutPorts[pr.ID] = &node.OutPort{Spec: port.OutSpec{ID: pr.ID}}
		}

		g.AddNode(h)
	}

	for _, w := range p.Wiring {
		from := port.Name{NodeID: w.FromNode, PortID: w.FromPort, FanIndex: w.FromFanIndex}
		to := port.Name{NodeID: w.ToNode, PortID: w.ToPort}
		if err := g.Wire(from, to); err != nil {
			return nil, fmt.Errorf("program: restoring wire %s->%s: %w", from, to, err)
		}
	}

	return g, nil
}

func parseKind(s string) (node.Kind, bool) {
	switch s {
	case "running":
		return node.Running, true
	case "constant":
		return node.Constant, true
	case "splitter":
		return node.Splitter, true
	case "template":
		return node.Template, true
	default:
		return 0, false
	}
}

// Marshal encodes p using gob, the envelope's wire format.
func Marshal(p *Program) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("program: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a Program previously produced by Marshal.
func Unmarshal(data []byte) (*Program, error) {
	var p Program
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("program: decode: %w", err)
	}
	return &p, nil
}
