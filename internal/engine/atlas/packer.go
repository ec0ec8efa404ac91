// Package atlas packs rectangles into growable atlases, for lightmaps and
// for shared image textures.
package atlas

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// NoNode marks an absent child.
const NoNode = ^uint32(0)

// ErrCorruptPacker is returned when serialized packer data cannot be trusted.
var ErrCorruptPacker = errors.New("atlas: corrupt packer data")

// Node is a rectangle of the packing tree. A node without children is free.
type Node struct {
	X, Y  uint32
	W, H  uint32
	Down  uint32
	Right uint32
}

// nodeSize is the serialized size of a Node.
const nodeSize = 6 * 4

// Leaf reports whether n has no children.
func (n Node) Leaf() bool { return n.Down == NoNode && n.Right == NoNode }

// Packer is a growing binary-tree rectangle packer. Nodes are only appended
// during a session, so indices stay valid.
type Packer struct {
	MaxWidth  uint32
	MaxHeight uint32
	Nodes     []Node
	Root      uint32

	queue []uint32
}

// NewPacker starts a session with a root of rootW by rootH that may grow up
// to maxW by maxH.
func NewPacker(maxW, maxH, rootW, rootH uint32, capacity int) *Packer {
	p := &Packer{}
	p.Init(maxW, maxH, rootW, rootH, capacity)
	return p
}

// Init resets p to a fresh session.
func (p *Packer) Init(maxW, maxH, rootW, rootH uint32, capacity int) {
	p.MaxWidth, p.MaxHeight = maxW, maxH
	if cap(p.Nodes) < capacity {
		p.Nodes = make([]Node, 0, max(capacity, 1))
	}
	p.Nodes = p.Nodes[:0]
	p.Root = p.add(leaf(0, 0, rootW, rootH))
}

func (p *Packer) add(n Node) uint32 {
	p.Nodes = append(p.Nodes, n)
	return uint32(len(p.Nodes) - 1)
}

func leaf(x, y, w, h uint32) Node {
	return Node{X: x, Y: y, W: w, H: h, Down: NoNode, Right: NoNode}
}

// Width returns the current root width.
func (p *Packer) Width() uint32 { return p.Nodes[p.Root].W }

// Height returns the current root height.
func (p *Packer) Height() uint32 { return p.Nodes[p.Root].H }

// FindNode returns the first free node under root, in breadth-first order,
// that holds a w by h rectangle within the maximum bounds.
func (p *Packer) FindNode(root, w, h uint32) (uint32, bool) {
	q := append(p.queue[:0], root)
	for i := 0; i < len(q); i++ {
		n := p.Nodes[q[i]]
		if !n.Leaf() {
			if n.Down != NoNode {
				q = append(q, n.Down)
			}
			if n.Right != NoNode {
				q = append(q, n.Right)
			}
			continue
		}
		if w <= n.W && h <= n.H && n.X+w <= p.MaxWidth && n.Y+h <= p.MaxHeight {
			p.queue = q
			return q[i], true
		}
	}
	p.queue = q
	return NoNode, false
}

// SplitNode places a w by h rectangle at the top left of the free node idx,
// adding the remaining space below and beside it as children. It returns idx.
func (p *Packer) SplitNode(idx, w, h uint32) uint32 {
	n := p.Nodes[idx]
	down := p.add(leaf(n.X, n.Y+h, n.W, n.H-h))
	right := p.add(leaf(n.X+w, n.Y, n.W-w, h))

	p.Nodes[idx].Down = down
	p.Nodes[idx].Right = right
	return idx
}

// GrowNode enlarges the tree to make room for a w by h rectangle and places
// it. Growth prefers keeping the atlas square. It fails when growth would
// exceed the maximum size.
func (p *Packer) GrowNode(w, h uint32) (uint32, bool) {
	root := p.Nodes[p.Root]

	canDown := w <= root.W && root.H+h <= p.MaxHeight
	canRight := h <= root.H && root.W+w <= p.MaxWidth

	shouldRight := canRight && root.H >= root.W+w
	shouldDown := canDown && root.W >= root.H+h

	switch {
	case shouldRight:
		return p.growRight(w, h)
	case shouldDown:
		return p.growDown(w, h)
	case canRight:
		return p.growRight(w, h)
	case canDown:
		return p.growDown(w, h)
	}
	return NoNode, false
}

func (p *Packer) growRight(w, h uint32) (uint32, bool) {
	old := p.Nodes[p.Root]
	strip := p.add(leaf(old.W, 0, w, old.H))
	p.Root = p.add(Node{W: old.W + w, H: old.H, Down: p.Root, Right: strip})
	return p.place(w, h)
}

func (p *Packer) growDown(w, h uint32) (uint32, bool) {
	old := p.Nodes[p.Root]
	strip := p.add(leaf(0, old.H, old.W, h))
	p.Root = p.add(Node{W: old.W, H: old.H + h, Down: strip, Right: p.Root})
	return p.place(w, h)
}

func (p *Packer) place(w, h uint32) (uint32, bool) {
	idx, ok := p.FindNode(p.Root, w, h)
	if !ok {
		return NoNode, false
	}
	return p.SplitNode(idx, w, h), true
}

// Insert places a w by h rectangle, growing the tree if needed, and returns
// the placed node.
func (p *Packer) Insert(w, h uint32) (Node, bool) {
	idx, ok := p.FindNode(p.Root, w, h)
	if ok {
		idx = p.SplitNode(idx, w, h)
	} else if idx, ok = p.GrowNode(w, h); !ok {
		return Node{}, false
	}
	n := p.Nodes[idx]
	return leaf(n.X, n.Y, w, h), true
}

// Size returns the serialized byte size of p.
func (p *Packer) Size() int { return 8 + len(p.Nodes)*nodeSize }

// WriteTo serializes the node count, root index, and nodes.
func (p *Packer) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, p.Size())
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(p.Nodes)))
	binary.LittleEndian.PutUint32(buf[4:], p.Root)
	off := 8
	for _, n := range p.Nodes {
		for _, v := range [...]uint32{n.X, n.Y, n.W, n.H, n.Down, n.Right} {
			binary.LittleEndian.PutUint32(buf[off:], v)
			off += 4
		}
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// UnmarshalBinary decodes a serialized packer from the start of data and
// returns the bytes consumed. p is left untouched on failure.
func (p *Packer) UnmarshalBinary(data []byte) (int, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("%w: header truncated", ErrCorruptPacker)
	}
	count := binary.LittleEndian.Uint32(data[0:])
	root := binary.LittleEndian.Uint32(data[4:])
	if root >= count {
		return 0, fmt.Errorf("%w: root %d of %d nodes", ErrCorruptPacker, root, count)
	}
	need := uint64(count) * nodeSize
	if uint64(len(data)-8) < need {
		return 0, fmt.Errorf("%w: %d nodes need %d bytes, have %d", ErrCorruptPacker, count, need, len(data)-8)
	}

	nodes := make([]Node, count)
	r := bytes.NewReader(data[8 : 8+need])
	if err := binary.Read(r, binary.LittleEndian, nodes); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptPacker, err)
	}
	for i, n := range nodes {
		if (n.Down != NoNode && n.Down >= count) || (n.Right != NoNode && n.Right >= count) {
			return 0, fmt.Errorf("%w: node %d has child out of range", ErrCorruptPacker, i)
		}
	}

	p.Nodes = nodes
	p.Root = root
	p.queue = p.queue[:0]
	return 8 + int(need), nil
}
