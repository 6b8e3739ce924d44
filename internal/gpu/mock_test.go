package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// =============================================================================
// Mock Types for Testing
// =============================================================================
//
// The mocks embed the hal interfaces so only the methods the backend
// actually calls need instrumented implementations; calling anything
// else panics on the nil embedded interface, which is exactly the
// signal wanted in a test.

// callSeq assigns increasing sequence numbers to noteworthy events so
// tests can assert ordering across device and queue (e.g. "fence wait
// happened before the texture was destroyed").
type callSeq struct {
	events []string
}

func (s *callSeq) note(event string) int {
	s.events = append(s.events, event)
	return len(s.events) - 1
}

// indexOf returns the sequence position of the first event with the
// given prefix, or -1.
func (s *callSeq) indexOf(prefix string) int {
	for i, ev := range s.events {
		if len(ev) >= len(prefix) && ev[:len(prefix)] == prefix {
			return i
		}
	}
	return -1
}

// mockDevice is a test double for hal.Device.
type mockDevice struct {
	hal.Device

	seq *callSeq

	// Failure injection.
	failCreateTexture   error
	failCreateBuffer    error
	failCreateBindGroup error
	failCreateFence     error
	failEndEncoding     error

	waitFunc func(fence hal.Fence, value uint64, timeout time.Duration) (bool, error)
	waitLog  []waitRecord

	// Call tracking.
	texturesCreated     int
	texturesDestroyed   int
	viewsCreated        int
	viewsDestroyed      int
	buffersCreated      int
	buffersDestroyed    int
	bindGroupsCreated   int
	bindGroupsDestroyed int
	samplersCreated     int
	samplersDestroyed   int
	fencesCreated       int
	fencesDestroyed     int
	freedCommandBufs    int

	lastEncoder *mockEncoder
}

type waitRecord struct {
	fence hal.Fence
	value uint64
}

func newMockDevice() (*mockDevice, *mockQueue) {
	seq := &callSeq{}
	return &mockDevice{seq: seq}, &mockQueue{seq: seq}
}

func (d *mockDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if d.failCreateBuffer != nil {
		return nil, d.failCreateBuffer
	}
	d.buffersCreated++
	return &mockBuffer{label: desc.Label, size: desc.Size}, nil
}

func (d *mockDevice) DestroyBuffer(buf hal.Buffer) {
	d.buffersDestroyed++
	if b, ok := buf.(*mockBuffer); ok {
		b.destroyed = true
		d.seq.note("destroy_buffer:" + b.label)
	}
}

func (d *mockDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if d.failCreateTexture != nil {
		return nil, d.failCreateTexture
	}
	d.texturesCreated++
	return &mockTexture{
		label:  desc.Label,
		width:  desc.Size.Width,
		height: desc.Size.Height,
	}, nil
}

func (d *mockDevice) DestroyTexture(tex hal.Texture) {
	d.texturesDestroyed++
	if t, ok := tex.(*mockTexture); ok {
		t.destroyed = true
		d.seq.note("destroy_texture:" + t.label)
	}
}

func (d *mockDevice) CreateTextureView(tex hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	d.viewsCreated++
	return &mockTextureView{texture: tex, label: desc.Label}, nil
}

func (d *mockDevice) DestroyTextureView(view hal.TextureView) {
	d.viewsDestroyed++
	if v, ok := view.(*mockTextureView); ok {
		v.destroyed = true
	}
}

func (d *mockDevice) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	d.samplersCreated++
	return &mockSampler{label: desc.Label}, nil
}

func (d *mockDevice) DestroySampler(_ hal.Sampler) { d.samplersDestroyed++ }

func (d *mockDevice) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	return &mockBindGroupLayout{label: desc.Label}, nil
}

func (d *mockDevice) DestroyBindGroupLayout(_ hal.BindGroupLayout) {}

func (d *mockDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	if d.failCreateBindGroup != nil {
		return nil, d.failCreateBindGroup
	}
	d.bindGroupsCreated++
	return &mockBindGroup{label: desc.Label, entries: len(desc.Entries)}, nil
}

func (d *mockDevice) DestroyBindGroup(group hal.BindGroup) {
	d.bindGroupsDestroyed++
	if g, ok := group.(*mockBindGroup); ok {
		g.destroyed = true
		d.seq.note("destroy_bind_group:" + g.label)
	}
}

func (d *mockDevice) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	return &mockPipelineLayout{label: desc.Label}, nil
}

func (d *mockDevice) DestroyPipelineLayout(_ hal.PipelineLayout) {}

func (d *mockDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	return &mockShaderModule{label: desc.Label}, nil
}

func (d *mockDevice) DestroyShaderModule(_ hal.ShaderModule) {}

func (d *mockDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	return &mockRenderPipeline{label: desc.Label}, nil
}

func (d *mockDevice) DestroyRenderPipeline(_ hal.RenderPipeline) {}

func (d *mockDevice) CreateCommandEncoder(_ *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc := &mockEncoder{endErr: d.failEndEncoding}
	d.lastEncoder = enc
	return enc, nil
}

func (d *mockDevice) CreateFence() (hal.Fence, error) {
	if d.failCreateFence != nil {
		return nil, d.failCreateFence
	}
	d.fencesCreated++
	return &mockFence{id: d.fencesCreated}, nil
}

func (d *mockDevice) DestroyFence(_ hal.Fence) { d.fencesDestroyed++ }

func (d *mockDevice) Wait(fence hal.Fence, value uint64, timeout time.Duration) (bool, error) {
	d.waitLog = append(d.waitLog, waitRecord{fence: fence, value: value})
	d.seq.note(fmt.Sprintf("wait:%d", value))
	if d.waitFunc != nil {
		return d.waitFunc(fence, value, timeout)
	}
	return true, nil
}

func (d *mockDevice) FreeCommandBuffer(_ hal.CommandBuffer) { d.freedCommandBufs++ }

func (d *mockDevice) Destroy() {}

// mockQueue is a test double for hal.Queue.
type mockQueue struct {
	hal.Queue

	seq *callSeq

	submitErr error
	submits   []submitRecord

	bufferWrites  []bufferWrite
	textureWrites []textureWrite
}

type submitRecord struct {
	commands int
	fence    hal.Fence
	value    uint64
}

type bufferWrite struct {
	buf    hal.Buffer
	offset uint64
	data   []byte
}

type textureWrite struct {
	texture hal.Texture
	origin  hal.Origin3D
	extent  hal.Extent3D
	layout  hal.ImageDataLayout
	bytes   int
}

func (q *mockQueue) Submit(cmds []hal.CommandBuffer, fence hal.Fence, value uint64) error {
	if q.submitErr != nil {
		return q.submitErr
	}
	q.submits = append(q.submits, submitRecord{commands: len(cmds), fence: fence, value: value})
	q.seq.note(fmt.Sprintf("submit:%d", value))
	return nil
}

func (q *mockQueue) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	q.bufferWrites = append(q.bufferWrites, bufferWrite{buf: buf, offset: offset, data: cp})
}

func (q *mockQueue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, extent *hal.Extent3D) {
	q.textureWrites = append(q.textureWrites, textureWrite{
		texture: dst.Texture,
		origin:  dst.Origin,
		extent:  *extent,
		layout:  *layout,
		bytes:   len(data),
	})
}

func (q *mockQueue) ReadBuffer(_ hal.Buffer, _ uint64, _ []byte) error { return nil }

// mockEncoder is a test double for hal.CommandEncoder.
type mockEncoder struct {
	hal.CommandEncoder

	began     bool
	ended     bool
	discarded bool
	pass      *mockRenderPass
	endErr    error
}

func (e *mockEncoder) BeginEncoding(_ string) error {
	e.began = true
	return nil
}

func (e *mockEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.pass = &mockRenderPass{desc: desc}
	return e.pass
}

func (e *mockEncoder) EndEncoding() (hal.CommandBuffer, error) {
	if e.endErr != nil {
		return nil, e.endErr
	}
	e.ended = true
	return &mockCommandBuffer{}, nil
}

func (e *mockEncoder) DiscardEncoding() { e.discarded = true }

// passCommand is one recorded render pass command.
type passCommand struct {
	kind string // "pipeline", "viewport", "bind", "vertex", "index", "scissor", "draw"

	// bind
	groupIndex uint32
	group      hal.BindGroup

	// scissor
	x, y, w, h uint32

	// draw
	indexCount    uint32
	firstIndex    uint32
	baseVertex    int32
	firstInstance uint32
}

// mockRenderPass records every command in order.
type mockRenderPass struct {
	hal.RenderPassEncoder

	desc     *hal.RenderPassDescriptor
	commands []passCommand
	ended    bool
}

func (p *mockRenderPass) SetPipeline(_ hal.RenderPipeline) {
	p.commands = append(p.commands, passCommand{kind: "pipeline"})
}

func (p *mockRenderPass) SetViewport(_, _, _, _, _, _ float32) {
	p.commands = append(p.commands, passCommand{kind: "viewport"})
}

func (p *mockRenderPass) SetBindGroup(index uint32, group hal.BindGroup, _ []uint32) {
	p.commands = append(p.commands, passCommand{kind: "bind", groupIndex: index, group: group})
}

func (p *mockRenderPass) SetVertexBuffer(_ uint32, _ hal.Buffer, _ uint64) {
	p.commands = append(p.commands, passCommand{kind: "vertex"})
}

func (p *mockRenderPass) SetIndexBuffer(_ hal.Buffer, _ gputypes.IndexFormat, _ uint64) {
	p.commands = append(p.commands, passCommand{kind: "index"})
}

func (p *mockRenderPass) SetScissorRect(x, y, w, h uint32) {
	p.commands = append(p.commands, passCommand{kind: "scissor", x: x, y: y, w: w, h: h})
}

func (p *mockRenderPass) DrawIndexed(indexCount, _, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.commands = append(p.commands, passCommand{
		kind:          "draw",
		indexCount:    indexCount,
		firstIndex:    firstIndex,
		baseVertex:    baseVertex,
		firstInstance: firstInstance,
	})
}

func (p *mockRenderPass) End() { p.ended = true }

// draws returns the recorded draw commands in order.
func (p *mockRenderPass) draws() []passCommand {
	var out []passCommand
	for _, c := range p.commands {
		if c.kind == "draw" {
			out = append(out, c)
		}
	}
	return out
}

// scissors returns the recorded scissor commands in order.
func (p *mockRenderPass) scissors() []passCommand {
	var out []passCommand
	for _, c := range p.commands {
		if c.kind == "scissor" {
			out = append(out, c)
		}
	}
	return out
}

// textureBinds returns the recorded bind commands for group index 1.
func (p *mockRenderPass) textureBinds() []passCommand {
	var out []passCommand
	for _, c := range p.commands {
		if c.kind == "bind" && c.groupIndex == 1 {
			out = append(out, c)
		}
	}
	return out
}

// ---- Resource doubles ----

type mockTexture struct {
	hal.Texture
	label     string
	width     uint32
	height    uint32
	destroyed bool
}

func (t *mockTexture) Destroy()              {}
func (t *mockTexture) NativeHandle() uintptr { return 0 }

type mockTextureView struct {
	hal.TextureView
	texture   hal.Texture
	label     string
	destroyed bool
}

func (v *mockTextureView) Destroy()              {}
func (v *mockTextureView) NativeHandle() uintptr { return 0 }

type mockBuffer struct {
	hal.Buffer
	label     string
	size      uint64
	destroyed bool
}

func (b *mockBuffer) Destroy()              {}
func (b *mockBuffer) NativeHandle() uintptr { return 0 }

type mockSampler struct {
	hal.Sampler
	label string
}

func (s *mockSampler) Destroy()              {}
func (s *mockSampler) NativeHandle() uintptr { return 0 }

type mockBindGroup struct {
	hal.BindGroup
	label     string
	entries   int
	destroyed bool
}

func (g *mockBindGroup) Destroy() {}

type mockBindGroupLayout struct {
	hal.BindGroupLayout
	label string
}

type mockPipelineLayout struct {
	hal.PipelineLayout
	label string
}

type mockShaderModule struct {
	hal.ShaderModule
	label string
}

type mockRenderPipeline struct {
	hal.RenderPipeline
	label string
}

type mockFence struct {
	hal.Fence
	id int
}

type mockCommandBuffer struct {
	hal.CommandBuffer
}
