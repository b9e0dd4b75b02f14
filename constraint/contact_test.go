package constraint

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const dt = 1.0 / 60.0

func solve(c *Contact, iterations int) {
	c.PrepareForIteration(dt)
	for range iterations {
		c.Iterate()
	}
}

func TestContact_Approaching(t *testing.T) {
	body1 := createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0})
	body2 := createDynamicBody(mgl64.Vec3{1.9, 0, 0}, mgl64.Vec3{-1, 0, 0})

	c := NewContact()
	c.Initialize(body1, body2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0.9, 0, 0}, mgl64.Vec3{1, 0, 0}, 0.1, true, DefaultContactSettings())
	solve(c, 10)

	v1, v2 := body1.LinearVelocity(), body2.LinearVelocity()

	// Equal masses: momentum stays zero
	if !vecNear(v1.Add(v2), mgl64.Vec3{}, 1e-9) {
		t.Errorf("momentum not conserved: v1 = %v, v2 = %v", v1, v2)
	}

	// Separating at the penetration bias: 0.25 * 60 * (0.1 - 0.01)
	vn := v2.Sub(v1).X()
	if !floatNear(vn, 1.35, 1e-9) {
		t.Errorf("relative normal velocity = %v, want 1.35", vn)
	}
	if c.AppliedNormalImpulse() <= 0 {
		t.Errorf("accumulated normal impulse = %v, want > 0", c.AppliedNormalImpulse())
	}
	if !body1.AngularVelocity().ApproxEqual(mgl64.Vec3{}) {
		t.Errorf("central contact spun body1: %v", body1.AngularVelocity())
	}
}

func TestContact_StaticBody(t *testing.T) {
	ground := createStaticBody(mgl64.Vec3{0, -1, 0})
	sphere := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -2, 0})

	c := NewContact()
	c.Initialize(ground, sphere, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 0, true, DefaultContactSettings())
	solve(c, 10)

	if !ground.LinearVelocity().ApproxEqual(mgl64.Vec3{}) {
		t.Errorf("static body moved: %v", ground.LinearVelocity())
	}
	if vy := sphere.LinearVelocity().Y(); !floatNear(vy, 0, 1e-9) {
		t.Errorf("sphere vertical velocity = %v, want 0", vy)
	}
}

func TestContact_BothStatic(t *testing.T) {
	a := createStaticBody(mgl64.Vec3{0, 0, 0})
	b := createStaticBody(mgl64.Vec3{0, 1, 0})

	c := NewContact()
	c.Initialize(a, b, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 1, true, DefaultContactSettings())
	solve(c, 10)

	if c.AppliedNormalImpulse() != 0 {
		t.Errorf("impulse between static bodies = %v", c.AppliedNormalImpulse())
	}
}

func TestContact_Restitution(t *testing.T) {
	body1 := createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0})
	body2 := createDynamicBody(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{-1, 0, 0})
	body1.Material.Restitution = 1
	body2.Material.Restitution = 1

	c := NewContact()
	c.Initialize(body1, body2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}, 0, true, DefaultContactSettings())
	solve(c, 10)

	if !vecNear(body1.LinearVelocity(), mgl64.Vec3{-1, 0, 0}, 1e-9) || !vecNear(body2.LinearVelocity(), mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("elastic bounce gave v1 = %v, v2 = %v", body1.LinearVelocity(), body2.LinearVelocity())
	}

	// Restitution only applies while the contact is new
	_ = body1.SetLinearVelocity(mgl64.Vec3{1, 0, 0})
	_ = body2.SetLinearVelocity(mgl64.Vec3{-1, 0, 0})
	c.Initialize(body1, body2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}, 0, false, DefaultContactSettings())
	c.accumulatedNormalImpulse = 0
	solve(c, 10)

	if vn := body2.LinearVelocity().Sub(body1.LinearVelocity()).X(); !floatNear(vn, 0, 1e-9) {
		t.Errorf("persistent contact bounced: relative velocity %v", vn)
	}
}

func TestContact_Friction(t *testing.T) {
	ground := createStaticBody(mgl64.Vec3{0, -1, 0})
	sphere := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, -1, 0})

	c := NewContact()
	c.Initialize(ground, sphere, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 0, true, DefaultContactSettings())
	solve(c, 10)

	vx := sphere.LinearVelocity().X()
	if vx >= 1 || vx < 0 {
		t.Errorf("sliding velocity = %v, want slowed in [0, 1)", vx)
	}
	if sphere.AngularVelocity().Z() >= 0 {
		t.Errorf("friction should roll the sphere clockwise, angular = %v", sphere.AngularVelocity())
	}
	if limit := c.DynamicFriction() * c.AppliedNormalImpulse(); c.AppliedTangentImpulse() < -limit-1e-12 || c.AppliedTangentImpulse() > limit+1e-12 {
		t.Errorf("tangent impulse %v outside the friction cone %v", c.AppliedTangentImpulse(), limit)
	}
}

func TestContact_WarmStartScalesWithTimestep(t *testing.T) {
	ground := createStaticBody(mgl64.Vec3{0, -1, 0})
	sphere := createDynamicBody(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -1, 0})

	c := NewContact()
	c.Initialize(ground, sphere, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 0, true, DefaultContactSettings())
	solve(c, 10)
	accumulated := c.AppliedNormalImpulse()

	_ = sphere.SetLinearVelocity(mgl64.Vec3{})
	c.Initialize(ground, sphere, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0}, 0, false, DefaultContactSettings())
	c.PrepareForIteration(dt / 2)

	want := accumulated * 0.5 * sphere.InverseMass()
	if vy := sphere.LinearVelocity().Y(); !floatNear(vy, want, 1e-9) {
		t.Errorf("warm start velocity = %v, want %v", vy, want)
	}
}

func TestContact_Speculative(t *testing.T) {
	tests := []struct {
		name        string
		penetration float64
		wantVn      float64
	}{
		// Far enough apart that the step cannot close the gap
		{name: "distant", penetration: -0.5, wantVn: -2},
		// Close: slowed to exactly close the gap over the step
		{name: "closing", penetration: -0.02, wantVn: -0.02 / dt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body1 := createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0})
			body2 := createDynamicBody(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{-1, 0, 0})

			p1 := mgl64.Vec3{1, 0, 0}
			p2 := p1.Add(mgl64.Vec3{-tt.penetration, 0, 0})

			c := NewContact()
			c.Initialize(body1, body2, p1, p2, mgl64.Vec3{1, 0, 0}, tt.penetration, true, DefaultContactSettings())
			solve(c, 10)

			if vn := body2.LinearVelocity().Sub(body1.LinearVelocity()).X(); !floatNear(vn, tt.wantVn, 1e-9) {
				t.Errorf("relative normal velocity = %v, want %v", vn, tt.wantVn)
			}
		})
	}
}

func TestContact_UpdatePosition(t *testing.T) {
	body1 := createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{})
	body2 := createDynamicBody(mgl64.Vec3{1.9, 0, 0}, mgl64.Vec3{})

	c := NewContact()
	c.Initialize(body1, body2, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0.9, 0, 0}, mgl64.Vec3{1, 0, 0}, 0.1, true, DefaultContactSettings())

	body2.SetPosition(mgl64.Vec3{2.2, 0, 0})
	c.UpdatePosition()

	if !floatNear(c.Penetration(), -0.2, 1e-12) {
		t.Errorf("Penetration() = %v, want -0.2", c.Penetration())
	}
	if !vecNear(c.Position2(), mgl64.Vec3{1.2, 0, 0}, 1e-12) {
		t.Errorf("Position2() = %v, want (1.2, 0, 0)", c.Position2())
	}
	if !floatNear(c.InitialPenetration(), 0.1, 1e-12) {
		t.Errorf("InitialPenetration() = %v, want 0.1", c.InitialPenetration())
	}
}
