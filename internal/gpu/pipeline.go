// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// meshShaderWGSL transforms GUI vertices from logical points to clip
// space and modulates the sampled texture with the per-vertex color.
// Colors and textures are premultiplied, matching the pipeline's blend
// state.
const meshShaderWGSL = `
struct Uniforms {
    screen_size: vec2<f32>,
    _pad: vec2<f32>,
};

@group(0) @binding(0) var<uniform> u: Uniforms;
@group(1) @binding(0) var t_tex: texture_2d<f32>;
@group(1) @binding(1) var s_tex: sampler;

struct VertexInput {
    @location(0) position: vec2<f32>,
    @location(1) tex_coord: vec2<f32>,
    @location(2) color: vec4<f32>,
};

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) tex_coord: vec2<f32>,
    @location(1) color: vec4<f32>,
};

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(
        2.0 * in.position.x / u.screen_size.x - 1.0,
        1.0 - 2.0 * in.position.y / u.screen_size.y,
        0.0,
        1.0,
    );
    out.tex_coord = in.tex_coord;
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return in.color * textureSample(t_tex, s_tex, in.tex_coord);
}
`

// uniformSize is the byte size of the Uniforms block (vec2 + padding).
const uniformSize = 16

// compileShaderToSPIRV compiles WGSL source to SPIR-V words for the HAL.
func compileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// meshPipeline holds the render pipeline and the fixed bind group
// resources shared by every frame: the texture/sampler layout the
// binding allocator issues from, and one screen-size uniform per frame
// slot (a slot's uniform is only written while the slot is idle, so an
// in-flight frame never observes a resize mid-read).
type meshPipeline struct {
	shader        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	textureLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipeline      hal.RenderPipeline
	sampler       hal.Sampler

	uniformBufs   []hal.Buffer
	uniformGroups []hal.BindGroup
}

func newMeshPipeline(device hal.Device, format gputypes.TextureFormat, slots int) (*meshPipeline, error) {
	p := &meshPipeline{}
	if err := p.create(device, format, slots); err != nil {
		p.destroy(device)
		return nil, err
	}
	return p, nil
}

func (p *meshPipeline) create(device hal.Device, format gputypes.TextureFormat, slots int) error {
	spirv, err := compileShaderToSPIRV(meshShaderWGSL)
	if err != nil {
		return fmt.Errorf("mesh shader: %w", err)
	}
	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "uigpu_mesh_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create mesh shader: %w", err)
	}
	p.shader = shader

	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "uigpu_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform layout: %w", err)
	}
	p.uniformLayout = uniformLayout

	textureLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "uigpu_texture_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create texture layout: %w", err)
	}
	p.textureLayout = textureLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "uigpu_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout, p.textureLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "uigpu_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	p.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "uigpu_mesh_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    meshVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create mesh pipeline: %w", err)
	}
	p.pipeline = pipeline

	for i := range slots {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("uigpu_uniform_slot%d", i),
			Size:  uniformSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create uniform buffer %d: %w", i, err)
		}
		p.uniformBufs = append(p.uniformBufs, buf)

		group, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  fmt.Sprintf("uigpu_uniform_bind_slot%d", i),
			Layout: p.uniformLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{
					Buffer: buf.NativeHandle(), Offset: 0, Size: uniformSize,
				}},
			},
		})
		if err != nil {
			return fmt.Errorf("create uniform bind group %d: %w", i, err)
		}
		p.uniformGroups = append(p.uniformGroups, group)
	}

	return nil
}

// meshVertexLayout returns the vertex buffer layout for the mesh
// pipeline. Matches VertexInput in meshShaderWGSL:
//
//	location 0: position (vec2<f32>)
//	location 1: tex_coord (vec2<f32>)
//	location 2: color (unorm8x4, expanded to vec4<f32>)
func meshVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 16, ShaderLocation: 2},
			},
		},
	}
}

// writeScreenSize uploads the logical screen size for one frame slot.
// Only called between the slot's fence wait and its next submission.
func (p *meshPipeline) writeScreenSize(queue hal.Queue, slot int, width, height float32) {
	var data [uniformSize]byte
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(width))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(height))
	queue.WriteBuffer(p.uniformBufs[slot], 0, data[:])
}

// destroy releases all pipeline resources in reverse creation order.
func (p *meshPipeline) destroy(device hal.Device) {
	for _, g := range p.uniformGroups {
		device.DestroyBindGroup(g)
	}
	p.uniformGroups = nil
	for _, b := range p.uniformBufs {
		device.DestroyBuffer(b)
	}
	p.uniformBufs = nil
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.textureLayout != nil {
		device.DestroyBindGroupLayout(p.textureLayout)
		p.textureLayout = nil
	}
	if p.uniformLayout != nil {
		device.DestroyBindGroupLayout(p.uniformLayout)
		p.uniformLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
