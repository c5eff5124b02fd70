package renderer

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/config"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/Carmen-Shannon/oxy-render/log"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed shaders/forward.wgsl
var forwardShader string

// Binding indices of the forward shader's group 0.
const (
	bindingCamera uint32 = iota
	bindingLights
	bindingMaterials
	bindingInstances
)

// initialInstances is the instance capacity allocated before the first frame.
const initialInstances = 1024

type gpuGeometry struct {
	vertices    *wgpu.Buffer
	indices     *wgpu.Buffer
	indexCount  uint32
	vertexCount uint32
}

type wgpuBackend struct {
	mu  sync.Mutex
	win window.Window

	presentMode          wgpu.PresentMode
	sampleCount          MSAASampleCount
	clearColor           wgpu.Color
	cullMode             wgpu.CullMode
	forceFallbackAdapter bool

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat        wgpu.TextureFormat
	width, height        int
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	depthTexture         *wgpu.Texture
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	reflection      *shader.Reflection
	shaderModule    *wgpu.ShaderModule
	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
	renderPipeline  *wgpu.RenderPipeline
	bindGroup       *wgpu.BindGroup
	buffers         map[uint32]*wgpu.Buffer
	bufferSizes     map[uint32]uint64

	geometries map[scene.ObjectKey]gpuGeometry

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	logger log.Logger
}

var _ Backend = &wgpuBackend{}

// NewWGPUBackend creates a WebGPU backend presenting to win. No GPU object is
// created until MakeContextCurrent runs on the coordinator's thread.
//
// Parameters:
//   - win: the window providing the surface descriptor and framebuffer size
//   - options: functional options to configure presentation
//
// Returns:
//   - Backend: the backend
func NewWGPUBackend(win window.Window, options ...BackendBuilderOption) Backend {
	if win == nil {
		panic("renderer: NewWGPUBackend requires a non-nil Window")
	}
	b := &wgpuBackend{
		win:         win,
		presentMode: wgpu.PresentModeFifo,
		sampleCount: MSAAOff,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
		cullMode:    wgpu.CullModeBack,
		buffers:     make(map[uint32]*wgpu.Buffer),
		bufferSizes: make(map[uint32]uint64),
		geometries:  make(map[scene.ObjectKey]gpuGeometry),
		logger:      log.New("wgpu"),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// MakeContextCurrent creates the instance, surface, adapter and device on the
// calling thread and configures the surface. It panics when no adapter or
// device is available.
func (b *wgpuBackend) MakeContextCurrent() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device != nil {
		return
	}

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(b.win.SurfaceDescriptor())

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		panic(fmt.Errorf("renderer: request adapter: %w", err))
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Render Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		panic(fmt.Errorf("renderer: request device: %w", err))
	}
	b.device = d
	b.queue = d.GetQueue()

	if err := b.configure(b.win.Width(), b.win.Height()); err != nil {
		panic(err)
	}
	b.logger.Infof("device ready: %dx%d, format %v, %dx MSAA", b.width, b.height, b.surfaceFormat, b.sampleCount)
}

// configure (re)builds the swapchain, MSAA and depth attachments for the given
// size. The caller holds b.mu.
func (b *wgpuBackend) configure(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("renderer: cannot configure a %dx%d surface", width, height)
	}
	b.releaseAttachments()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return errors.New("renderer: surface is not compatible with the adapter")
	}
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	count := uint32(b.sampleCount)
	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	var err error
	if count > 1 {
		b.msaaTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         "MSAA Texture",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("renderer: create MSAA texture: %w", err)
		}
		if b.msaaTextureView, err = b.msaaTexture.CreateView(nil); err != nil {
			return fmt.Errorf("renderer: create MSAA view: %w", err)
		}
	}

	// Depth sample count must match the color attachment.
	b.depthTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Texture",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("renderer: create depth texture: %w", err)
	}
	if b.depthTextureView, err = b.depthTexture.CreateView(nil); err != nil {
		return fmt.Errorf("renderer: create depth view: %w", err)
	}

	// With MSAA the pass draws into the MSAA view and resolves into the
	// swapchain view, which BeginFrame fills in per frame.
	storeOp := wgpu.StoreOpStore
	if count > 1 {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.msaaTextureView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    storeOp,
				ClearValue: b.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}
	b.width, b.height = width, height
	return nil
}

func (b *wgpuBackend) releaseAttachments() {
	for _, v := range []*wgpu.TextureView{b.msaaTextureView, b.depthTextureView} {
		if v != nil {
			v.Release()
		}
	}
	for _, t := range []*wgpu.Texture{b.msaaTexture, b.depthTexture} {
		if t != nil {
			t.Release()
		}
	}
	b.msaaTexture, b.msaaTextureView = nil, nil
	b.depthTexture, b.depthTextureView = nil, nil
}

// SwapBuffers presents the acquired surface image. It is a no-op when the
// frame never acquired one.
func (b *wgpuBackend) SwapBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuBackend) Size() (width, height int) {
	return b.win.Width(), b.win.Height()
}

func (b *wgpuBackend) ContextVersion() (major, minor int) {
	return 0, 0
}

func (b *wgpuBackend) LoadShaders(cfg config.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return errors.New("renderer: LoadShaders before MakeContextCurrent")
	}
	if b.renderPipeline != nil {
		return nil
	}

	r, err := shader.Reflect(forwardShader)
	if err != nil {
		return err
	}
	b.reflection = r

	b.shaderModule, err = b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Forward Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: forwardShader,
		},
	})
	if err != nil {
		return fmt.Errorf("renderer: compile forward shader: %w", err)
	}

	layoutDesc := r.BindGroupLayout(0, "Forward Bind Group Layout")
	b.bindGroupLayout, err = b.device.CreateBindGroupLayout(&layoutDesc)
	if err != nil {
		return fmt.Errorf("renderer: create bind group layout: %w", err)
	}
	b.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Forward Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.bindGroupLayout},
	})
	if err != nil {
		return fmt.Errorf("renderer: create pipeline layout: %w", err)
	}

	b.renderPipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Forward Render Pipeline",
		Layout: b.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     b.shaderModule,
			EntryPoint: r.VertexEntry,
			Buffers:    r.VertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     b.shaderModule,
			EntryPoint: r.FragmentEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  b.cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("renderer: create render pipeline: %w", err)
	}

	for _, binding := range r.Bindings {
		size := binding.Entry.Buffer.MinBindingSize
		if binding.Binding == bindingInstances {
			size *= initialInstances
		}
		if err := b.ensureBuffer(binding, size); err != nil {
			return err
		}
	}
	if err := b.rebuildBindGroup(); err != nil {
		return err
	}
	b.logger.Infof("forward pipeline ready (bindless %s, %d bindings)", cfg.Bindless, len(r.Bindings))
	return nil
}

// ensureBuffer makes the buffer behind binding at least size bytes. A buffer
// that is too small is replaced with one of at least twice its size and the
// bind group is dropped so rebuildBindGroup recreates it. The caller holds b.mu.
func (b *wgpuBackend) ensureBuffer(binding shader.Binding, size uint64) error {
	if _, ok := b.buffers[binding.Binding]; ok && b.bufferSizes[binding.Binding] >= size {
		return nil
	}

	var usage wgpu.BufferUsage
	switch binding.Entry.Buffer.Type {
	case wgpu.BufferBindingTypeUniform:
		usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	default:
		usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	}

	if old, ok := b.buffers[binding.Binding]; ok {
		size = max(size, 2*b.bufferSizes[binding.Binding])
		old.Release()
	}
	size = (size + 3) &^ 3

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: binding.Name + " Buffer",
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return fmt.Errorf("renderer: create %s buffer: %w", binding.Name, err)
	}
	b.buffers[binding.Binding] = buf
	b.bufferSizes[binding.Binding] = size
	if b.bindGroup != nil {
		b.bindGroup.Release()
		b.bindGroup = nil
	}
	return nil
}

func (b *wgpuBackend) rebuildBindGroup() error {
	if b.bindGroup != nil {
		return nil
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(b.reflection.Bindings))
	for _, binding := range b.reflection.Bindings {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: binding.Binding,
			Buffer:  b.buffers[binding.Binding],
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Forward Bind Group",
		Layout:  b.bindGroupLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("renderer: create bind group: %w", err)
	}
	b.bindGroup = bg
	return nil
}

// write uploads data to the buffer behind binding index, growing it first.
// The caller holds b.mu.
func (b *wgpuBackend) write(index uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var binding shader.Binding
	found := false
	for _, bd := range b.reflection.Bindings {
		if bd.Binding == index {
			binding, found = bd, true
			break
		}
	}
	if !found {
		return fmt.Errorf("renderer: forward shader has no binding %d", index)
	}
	if err := b.ensureBuffer(binding, uint64(len(data))); err != nil {
		return err
	}
	if err := b.rebuildBindGroup(); err != nil {
		return err
	}
	b.queue.WriteBuffer(b.buffers[index], 0, data)
	return nil
}

func (b *wgpuBackend) LoadGeometry(key scene.ObjectKey, g scene.Geometry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return errors.New("renderer: LoadGeometry before MakeContextCurrent")
	}
	if _, ok := b.geometries[key]; ok {
		return nil
	}
	if len(g.Vertices) == 0 {
		return fmt.Errorf("renderer: geometry %d has no vertices", key)
	}

	vertexData := common.SliceToBytes(g.Vertices)
	vb, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("Geometry %d Vertex Buffer", key),
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	b.queue.WriteBuffer(vb, 0, vertexData)

	geom := gpuGeometry{vertices: vb, vertexCount: uint32(g.VertexCount())}
	if len(g.Indices) > 0 {
		indexData := common.SliceToBytes(g.Indices)
		ib, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("Geometry %d Index Buffer", key),
			Size:  uint64(len(indexData)),
			Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			vb.Release()
			return err
		}
		b.queue.WriteBuffer(ib, 0, indexData)
		geom.indices = ib
		geom.indexCount = uint32(len(g.Indices))
	}
	b.geometries[key] = geom
	return nil
}

func (b *wgpuBackend) BeginFrame(target pipeline.DrawTarget) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.renderPipeline == nil {
		return errors.New("renderer: BeginFrame before LoadShaders")
	}
	if b.frameSurface != nil {
		return errors.New("renderer: previous frame surface not yet presented")
	}
	if target.Width != b.width || target.Height != b.height {
		if err := b.configure(target.Width, target.Height); err != nil {
			return err
		}
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}

	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuBackend) WriteFrame(viewProj [16]float32, lights, materials []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return errors.Join(
		b.write(bindingCamera, common.SliceToBytes(viewProj[:])),
		b.write(bindingLights, lights),
		b.write(bindingMaterials, materials),
	)
}

func (b *wgpuBackend) WriteInstances(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.write(bindingInstances, data)
}

func (b *wgpuBackend) DrawIndexed(geometry scene.ObjectKey, firstInstance, instanceCount uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return errors.New("renderer: DrawIndexed outside a frame")
	}
	geom, ok := b.geometries[geometry]
	if !ok {
		return fmt.Errorf("renderer: geometry %d not loaded", geometry)
	}

	b.framePass.SetPipeline(b.renderPipeline)
	b.framePass.SetBindGroup(0, b.bindGroup, nil)
	b.framePass.SetVertexBuffer(0, geom.vertices, 0, wgpu.WholeSize)
	if geom.indices == nil {
		b.framePass.Draw(geom.vertexCount, instanceCount, 0, firstInstance)
		return nil
	}
	b.framePass.SetIndexBuffer(geom.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	b.framePass.DrawIndexed(geom.indexCount, instanceCount, 0, 0, firstInstance)
	return nil
}

func (b *wgpuBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return errors.New("renderer: EndFrame without BeginFrame")
	}
	b.framePass.End()
	b.framePass = nil

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder, b.frameView, b.frameSurface = nil, nil, nil
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	return nil
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return
	}
	for key, g := range b.geometries {
		g.vertices.Release()
		if g.indices != nil {
			g.indices.Release()
		}
		delete(b.geometries, key)
	}
	if b.bindGroup != nil {
		b.bindGroup.Release()
	}
	for key, buf := range b.buffers {
		buf.Release()
		delete(b.buffers, key)
	}
	if b.renderPipeline != nil {
		b.renderPipeline.Release()
		b.pipelineLayout.Release()
		b.bindGroupLayout.Release()
		b.shaderModule.Release()
	}
	b.releaseAttachments()
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()

	b.bindGroup, b.renderPipeline = nil, nil
	b.queue, b.device, b.adapter, b.surface, b.instance = nil, nil, nil, nil, nil
	b.logger.Debugf("GPU resources released")
}
