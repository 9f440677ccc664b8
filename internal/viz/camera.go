package viz

import (
	"math"
	"sort"

	"github.com/san-kum/quadsim/internal/env"
	"github.com/san-kum/quadsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera orbits the scene centre and projects world points onto a canvas.
type Camera struct {
	Distance         float64
	Pitch, Yaw, Roll float64
	Zoom             float64
}

func NewCamera() *Camera {
	return &Camera{Distance: 12, Pitch: -1.1, Yaw: 0.6, Zoom: 1.0}
}

func (c *Camera) RotateX(a float64) { c.Pitch += a }
func (c *Camera) RotateY(a float64) { c.Yaw += a }
func (c *Camera) RotateZ(a float64) { c.Roll += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// rotate applies yaw about world Z, then pitch about X, then roll about
// the viewing axis.
func (c *Camera) rotate(p r3.Vec) r3.Vec {
	cz, sz := math.Cos(c.Yaw), math.Sin(c.Yaw)
	p.X, p.Y = p.X*cz-p.Y*sz, p.X*sz+p.Y*cz
	cx, sx := math.Cos(c.Pitch), math.Sin(c.Pitch)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cr, sr := math.Cos(c.Roll), math.Sin(c.Roll)
	p.X, p.Y = p.X*cr-p.Y*sr, p.X*sr+p.Y*cr
	return p
}

// Project returns sub-pixel coordinates, a depth for ordering and whether
// the point landed on the canvas. Points behind the eye are not visible.
func (c *Camera) Project(p r3.Vec, sw, sh int) (int, int, float64, bool) {
	rot := r3.Scale(c.Zoom, c.rotate(p))
	if rot.Z >= c.Distance-0.1 {
		return 0, 0, 0, false
	}
	persp := c.Distance / (c.Distance - rot.Z)
	pScale := float64(min(sw, sh)) / 6.0
	sx := int(rot.X*persp*pScale) + sw/2
	sy := int(-rot.Y*persp*pScale) + sh/2
	return sx, sy, rot.Z, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End r3.Vec
	Dotted     bool
}

type Wireframe struct{ Edges []Edge }

func NewWireframe() *Wireframe { return &Wireframe{} }

func (w *Wireframe) AddEdge(s, e r3.Vec) {
	w.Edges = append(w.Edges, Edge{Start: s, End: e})
}

// AddDotted adds an edge drawn with every other pixel.
func (w *Wireframe) AddDotted(s, e r3.Vec) {
	w.Edges = append(w.Edges, Edge{Start: s, End: e, Dotted: true})
}

// AddCross adds three axis-aligned segments of half-length r around p.
func (w *Wireframe) AddCross(p r3.Vec, r float64) {
	w.AddEdge(r3.Sub(p, r3.Vec{X: r}), r3.Add(p, r3.Vec{X: r}))
	w.AddEdge(r3.Sub(p, r3.Vec{Y: r}), r3.Add(p, r3.Vec{Y: r}))
	w.AddEdge(r3.Sub(p, r3.Vec{Z: r}), r3.Add(p, r3.Vec{Z: r}))
}

type projectedEdge struct {
	x1, y1, x2, y2 int
	depth          float64
	dotted         bool
}

// Render3D draws the wireframe far-to-near.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	cw, ch := c.Size()
	proj := make([]projectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, cw, ch)
		x2, y2, d2, v2 := cam.Project(e.End, cw, ch)
		if v1 || v2 {
			proj = append(proj, projectedEdge{x1, y1, x2, y2, (d1 + d2) / 2, e.Dotted})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth < proj[j].depth })
	for _, e := range proj {
		switch {
		case e.x1 == e.x2 && e.y1 == e.y2:
			c.Set(e.x1, e.y1)
		case e.dotted:
			c.DrawDotted(e.x1, e.y1, e.x2, e.y2)
		default:
			c.DrawLine(e.x1, e.y1, e.x2, e.y2)
		}
	}
}

// armScale exaggerates the airframe so that it stays visible at a few
// metres of field of view.
const armScale = 3.0

// SceneWireframe builds the vehicle airframe, the target, the reference
// vehicle and the cable with its load, all relative to the frame target.
func SceneWireframe(f env.Frame, arm float64) *Wireframe {
	w := NewWireframe()
	origin := f.Target
	rel := func(p r3.Vec) r3.Vec { return r3.Sub(p, origin) }

	ground := []r3.Vec{{X: -3, Y: -3}, {X: 3, Y: -3}, {X: 3, Y: 3}, {X: -3, Y: 3}}
	for i, p := range ground {
		q := ground[(i+1)%len(ground)]
		w.AddDotted(r3.Vec{X: p.X, Y: p.Y, Z: -origin.Z}, r3.Vec{X: q.X, Y: q.Y, Z: -origin.Z})
	}
	w.AddCross(r3.Vec{}, 0.15)

	addAirframe(w, rel(f.Vehicle.Position), f.Vehicle, arm)
	if f.Variant == env.WithReference {
		addAirframe(w, rel(f.Reference.Position), f.Reference, arm/2)
	}
	if f.Variant == env.SlungLoad {
		from, to := rel(f.Vehicle.Position), rel(f.Load.Position)
		if f.Cable == physics.Slack {
			w.AddDotted(from, to)
		} else {
			w.AddEdge(from, to)
		}
		w.AddCross(to, 0.08)
	}
	return w
}

func addAirframe(w *Wireframe, centre r3.Vec, b physics.Body, arm float64) {
	rot := b.Rot()
	l := arm * armScale
	for i := 0; i < 2; i++ {
		axis := rot.Col(i)
		w.AddEdge(r3.Add(centre, r3.Scale(l, axis)), r3.Sub(centre, r3.Scale(l, axis)))
	}
	w.AddEdge(centre, r3.Add(centre, r3.Scale(l/2, rot.Col(2))))
}
