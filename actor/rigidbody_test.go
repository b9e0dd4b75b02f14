package actor

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// =============================================================================
// BodyType Tests
// =============================================================================

func TestBodyType_Constants(t *testing.T) {
	if BodyTypeDynamic == BodyTypeStatic {
		t.Error("BodyTypeDynamic and BodyTypeStatic should have different values")
	}
	if BodyTypeDynamic != 0 {
		t.Errorf("BodyTypeDynamic = %d, want 0", BodyTypeDynamic)
	}
}

// =============================================================================
// NewRigidBody Tests
// =============================================================================

func TestNewRigidBody(t *testing.T) {
	tests := []struct {
		name        string
		shape       Shape
		bodyType    BodyType
		density     float64
		wantMass    float64
		wantInvMass float64
	}{
		{"dynamic box", NewBox(mgl64.Vec3{1, 2, 3}), BodyTypeDynamic, 1, 6, 1.0 / 6},
		{"dense box", NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeDynamic, 4, 4, 0.25},
		{"zero density falls back to 1", NewBox(mgl64.Vec3{2, 2, 2}), BodyTypeDynamic, 0, 8, 0.125},
		{"static box", NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeStatic, 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			material := DefaultMaterial()
			material.Density = tt.density
			rb := NewRigidBody(tt.shape, tt.bodyType, material)

			if !rb.IsActive() {
				t.Error("new bodies should be active")
			}
			if rb.Island != NoIsland {
				t.Errorf("Island = %v, want NoIsland", rb.Island)
			}
			if !relEqual(1/rb.inverseMass, tt.wantMass, 1e-9) {
				t.Errorf("mass = %v, want %v", 1/rb.inverseMass, tt.wantMass)
			}
			if !floatEqual(rb.InverseMass(), tt.wantInvMass, 1e-12) {
				t.Errorf("InverseMass() = %v, want %v", rb.InverseMass(), tt.wantInvMass)
			}
			if !mat3Equal(rb.Orientation(), mgl64.Ident3(), 1e-12) {
				t.Errorf("Orientation() = %v, want identity", rb.Orientation())
			}
		})
	}
}

func TestRigidBodyIDsAreUnique(t *testing.T) {
	a := NewRigidBody(NewSphere(1), BodyTypeDynamic, DefaultMaterial())
	b := NewRigidBody(NewSphere(1), BodyTypeDynamic, DefaultMaterial())
	if a.ID() == b.ID() {
		t.Errorf("two bodies share ID %d", a.ID())
	}
}

// =============================================================================
// Error paths
// =============================================================================

func TestStaticBodyRejectsVelocity(t *testing.T) {
	rb := NewRigidBody(NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeStatic, DefaultMaterial())

	if err := rb.SetLinearVelocity(mgl64.Vec3{1, 0, 0}); !errors.Is(err, ErrStaticBody) {
		t.Errorf("SetLinearVelocity() error = %v, want ErrStaticBody", err)
	}
	if err := rb.SetAngularVelocity(mgl64.Vec3{1, 0, 0}); !errors.Is(err, ErrStaticBody) {
		t.Errorf("SetAngularVelocity() error = %v, want ErrStaticBody", err)
	}

	rb.ApplyImpulse(mgl64.Vec3{10, 0, 0})
	rb.AddForce(mgl64.Vec3{10, 0, 0})
	rb.IntegrateForces(0.1, mgl64.Vec3{0, -9.81, 0})
	if rb.LinearVelocity() != (mgl64.Vec3{}) {
		t.Errorf("static body moved: %v", rb.LinearVelocity())
	}
}

func TestSetMassProperties(t *testing.T) {
	rb := NewRigidBody(NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeDynamic, DefaultMaterial())

	if err := rb.SetMassProperties(mgl64.Ident3(), 0, false); !errors.Is(err, ErrNonPositiveMass) {
		t.Errorf("SetMassProperties(0) error = %v, want ErrNonPositiveMass", err)
	}

	if err := rb.SetMassProperties(mgl64.Ident3().Mul(2), 4, false); err != nil {
		t.Fatalf("SetMassProperties() error = %v", err)
	}
	if !floatEqual(rb.InverseMass(), 0.25, 1e-12) {
		t.Errorf("InverseMass() = %v, want 0.25", rb.InverseMass())
	}
	if !mat3Equal(rb.InverseInertia(), mgl64.Ident3().Mul(0.5), 1e-12) {
		t.Errorf("InverseInertia() = %v", rb.InverseInertia())
	}

	if err := rb.SetMassProperties(mgl64.Ident3().Mul(0.5), 0.25, true); err != nil {
		t.Fatalf("SetMassProperties(inverse) error = %v", err)
	}
	if !floatEqual(rb.Mass(), 4, 1e-12) || !mat3Equal(rb.Inertia(), mgl64.Ident3().Mul(2), 1e-12) {
		t.Errorf("inverse setter gave mass %v inertia %v", rb.Mass(), rb.Inertia())
	}
}

// =============================================================================
// Shape tracking
// =============================================================================

func TestShapeChangeIsPickedUpLazily(t *testing.T) {
	box := NewBox(mgl64.Vec3{1, 1, 1})
	rb := NewRigidBody(box, BodyTypeDynamic, DefaultMaterial())

	box.SetSize(mgl64.Vec3{2, 2, 2})
	if !floatEqual(rb.Mass(), 1, 1e-9) {
		t.Fatalf("mass changed before Update: %v", rb.Mass())
	}

	rb.Update()
	if !floatEqual(rb.Mass(), 8, 1e-9) {
		t.Errorf("Mass() after Update = %v, want 8", rb.Mass())
	}
	if !vec3Equal(rb.BoundingBox().Max, mgl64.Vec3{1, 1, 1}, 1e-9) {
		t.Errorf("BoundingBox() = %v", rb.BoundingBox())
	}
}

func TestOverriddenMassSurvivesShapeChange(t *testing.T) {
	box := NewBox(mgl64.Vec3{1, 1, 1})
	rb := NewRigidBody(box, BodyTypeDynamic, DefaultMaterial())
	if err := rb.SetMassProperties(mgl64.Ident3(), 3, false); err != nil {
		t.Fatal(err)
	}

	box.SetSize(mgl64.Vec3{2, 2, 2})
	rb.Update()
	if !floatEqual(rb.Mass(), 3, 1e-9) {
		t.Errorf("Mass() = %v, want the override 3", rb.Mass())
	}
}

// =============================================================================
// Integration
// =============================================================================

func TestIntegrateForces(t *testing.T) {
	gravity := mgl64.Vec3{0, -10, 0}

	rb := NewRigidBody(NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeDynamic, DefaultMaterial())
	rb.AddForce(mgl64.Vec3{2, 0, 0})
	rb.IntegrateForces(0.5, gravity)

	if !vec3Equal(rb.LinearVelocity(), mgl64.Vec3{1, -5, 0}, 1e-9) {
		t.Errorf("LinearVelocity() = %v, want (1, -5, 0)", rb.LinearVelocity())
	}
	if rb.Force() != (mgl64.Vec3{}) {
		t.Errorf("forces not cleared: %v", rb.Force())
	}

	floating := NewRigidBody(NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeDynamic, DefaultMaterial())
	floating.AffectedByGravity = false
	floating.IntegrateForces(0.5, gravity)
	if floating.LinearVelocity() != (mgl64.Vec3{}) {
		t.Errorf("gravity applied to a body that ignores it: %v", floating.LinearVelocity())
	}
}

func TestIntegratePositionsRotation(t *testing.T) {
	rb := NewRigidBody(NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeDynamic, DefaultMaterial())
	_ = rb.SetAngularVelocity(mgl64.Vec3{0, math.Pi, 0})
	_ = rb.SetLinearVelocity(mgl64.Vec3{1, 0, 0})

	for i := 0; i < 100; i++ {
		rb.IntegratePositions(0.005, 1, 1)
	}

	// Half a second at pi rad/s is a quarter turn around Y
	want := mgl64.Rotate3DY(math.Pi / 2)
	if !mat3Equal(rb.Orientation(), want, 1e-6) {
		t.Errorf("Orientation() = %v, want %v", rb.Orientation(), want)
	}
	if !vec3Equal(rb.Position(), mgl64.Vec3{0.5, 0, 0}, 1e-9) {
		t.Errorf("Position() = %v, want (0.5, 0, 0)", rb.Position())
	}
	if !mat3Equal(rb.Orientation().Mul3(rb.InverseOrientation()), mgl64.Ident3(), 1e-9) {
		t.Error("InverseOrientation() is not the inverse")
	}
}

func TestIntegratePositionsSmallAngle(t *testing.T) {
	rb := NewRigidBody(NewSphere(1), BodyTypeDynamic, DefaultMaterial())
	_ = rb.SetAngularVelocity(mgl64.Vec3{0, 0, 1e-5})

	rb.IntegratePositions(0.01, 1, 1)

	if det := rb.Orientation().Det(); !floatEqual(det, 1, 1e-9) {
		t.Errorf("orientation is no longer a rotation, det = %v", det)
	}
}

func TestIntegratePositionsAtRest(t *testing.T) {
	rb := NewRigidBody(NewBox(mgl64.Vec3{1, 2, 3}), BodyTypeDynamic, DefaultMaterial())
	rb.SetPosition(mgl64.Vec3{1, 2, 3})
	rb.SetOrientation(mgl64.Rotate3DX(0.7).Mul3(mgl64.Rotate3DY(-1.1)))
	position, orientation := rb.Position(), rb.Orientation()

	for range 100 {
		rb.IntegratePositions(1.0/60, 0.9, 0.9)
	}

	if rb.Position() != position || rb.Orientation() != orientation {
		t.Errorf("body at rest moved: %v %v", rb.Position(), rb.Orientation())
	}
}

func TestDamping(t *testing.T) {
	material := DefaultMaterial()
	material.LinearDamping = 1
	rb := NewRigidBody(NewSphere(1), BodyTypeDynamic, material)
	_ = rb.SetLinearVelocity(mgl64.Vec3{10, 0, 0})

	rb.IntegratePositions(0.1, 0.5, 1)

	want := 10 * 0.5 * math.Exp(-0.1)
	if !floatEqual(rb.LinearVelocity().X(), want, 1e-9) {
		t.Errorf("LinearVelocity().X() = %v, want %v", rb.LinearVelocity().X(), want)
	}
}

func TestParticleHasNoRotation(t *testing.T) {
	p := NewParticle(NewSphere(0.1), DefaultMaterial())
	_ = p.SetAngularVelocity(mgl64.Vec3{1, 1, 1})
	p.AddTorque(mgl64.Vec3{5, 0, 0})
	p.IntegrateForces(0.1, mgl64.Vec3{})
	p.IntegratePositions(0.1, 1, 1)

	if !mat3Equal(p.Orientation(), mgl64.Ident3(), 1e-12) {
		t.Errorf("particle rotated: %v", p.Orientation())
	}
	if p.InverseInertiaWorld() != (mgl64.Mat3{}) {
		t.Errorf("particle has a world inverse inertia: %v", p.InverseInertiaWorld())
	}
}

func TestApplyImpulseAt(t *testing.T) {
	rb := NewRigidBody(NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeDynamic, DefaultMaterial())

	rb.ApplyImpulseAt(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0.5, 0, 0})

	if !vec3Equal(rb.LinearVelocity(), mgl64.Vec3{0, 1, 0}, 1e-9) {
		t.Errorf("LinearVelocity() = %v", rb.LinearVelocity())
	}
	// torque 0.5 about Z over inertia 1/6
	if !vec3Equal(rb.AngularVelocity(), mgl64.Vec3{0, 0, 3}, 1e-9) {
		t.Errorf("AngularVelocity() = %v, want (0, 0, 3)", rb.AngularVelocity())
	}
	if got := rb.PointVelocity(mgl64.Vec3{0.5, 0, 0}); !vec3Equal(got, mgl64.Vec3{0, 2.5, 0}, 1e-9) {
		t.Errorf("PointVelocity() = %v", got)
	}
}

// =============================================================================
// Deactivation
// =============================================================================

func TestInactiveTime(t *testing.T) {
	rb := NewRigidBody(NewSphere(1), BodyTypeDynamic, DefaultMaterial())

	rb.UpdateInactiveTime(0.5, 0.3, 0.3)
	rb.UpdateInactiveTime(0.5, 0.3, 0.3)
	if !floatEqual(rb.InactiveTime(), 1, 1e-12) {
		t.Errorf("InactiveTime() = %v, want 1", rb.InactiveTime())
	}

	_ = rb.SetLinearVelocity(mgl64.Vec3{1, 0, 0})
	rb.UpdateInactiveTime(0.5, 0.3, 0.3)
	if rb.InactiveTime() != 0 {
		t.Errorf("InactiveTime() = %v after moving, want 0", rb.InactiveTime())
	}

	rb.SetActive(false)
	if rb.LinearVelocity() != (mgl64.Vec3{}) || !math.IsInf(rb.InactiveTime(), 1) {
		t.Errorf("sleeping body kept velocity %v or time %v", rb.LinearVelocity(), rb.InactiveTime())
	}
	rb.SetActive(true)
	if rb.InactiveTime() != 0 {
		t.Errorf("woken body InactiveTime() = %v", rb.InactiveTime())
	}

	rb.AllowDeactivation = false
	rb.UpdateInactiveTime(0.5, 0.3, 0.3)
	if rb.InactiveTime() != 0 {
		t.Error("body that may not sleep accumulated inactive time")
	}
}

func TestSweptBoundingBox(t *testing.T) {
	rb := NewRigidBody(NewSphere(1), BodyTypeDynamic, DefaultMaterial())
	rb.EnableSpeculativeContacts = true
	_ = rb.SetLinearVelocity(mgl64.Vec3{10, 0, 0})

	rb.IntegratePositions(0.1, 1, 1)

	if !vec3Equal(rb.SweptDirection(), mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("SweptDirection() = %v", rb.SweptDirection())
	}
	if !floatEqual(rb.BoundingBox().Max.X(), 3, 1e-9) || !floatEqual(rb.BoundingBox().Min.X(), 0, 1e-9) {
		t.Errorf("BoundingBox() = %v, want x in [0, 3]", rb.BoundingBox())
	}
}

type recordingDrawer struct {
	triangles int
	lines     int
}

func (d *recordingDrawer) DrawLine(start, end mgl64.Vec3)  { d.lines++ }
func (d *recordingDrawer) DrawPoint(point mgl64.Vec3)      {}
func (d *recordingDrawer) DrawTriangle(a, b, c mgl64.Vec3) { d.triangles++ }

func TestDebugDraw(t *testing.T) {
	rb := NewRigidBody(NewBox(mgl64.Vec3{1, 1, 1}), BodyTypeDynamic, DefaultMaterial())
	d := &recordingDrawer{}
	rb.DebugDraw(d)
	if d.triangles == 0 {
		t.Error("DebugDraw() drew nothing")
	}
}
