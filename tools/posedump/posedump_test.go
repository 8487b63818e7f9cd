package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/animnext/config"
	"github.com/mogaika/animnext/evalvm"
	"github.com/mogaika/animnext/registry"
	"github.com/mogaika/animnext/skeleton"
)

func TestRandomMesh(t *testing.T) {
	a, err := randomMesh("Kratos", 6)
	require.NoError(t, err)
	b, err := randomMesh("Kratos", 6)
	require.NoError(t, err)

	require.Equal(t, 6, a.RefSkeleton.Num())
	assert.Equal(t, 2, a.NumLODs())
	for i := 0; i < 6; i++ {
		assert.Equal(t, a.RefSkeleton.BoneInfo()[i].Name, b.RefSkeleton.BoneInfo()[i].Name)
	}

	_, err = randomMesh("Kratos", 0)
	assert.Error(t, err)
}

func TestRunExportsPose(t *testing.T) {
	mesh, err := randomMesh("Zeus", 8)
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	dir := t.TempDir()
	path := filepath.Join(dir, "pose.glb")
	pic := filepath.Join(dir, "pose.webp")
	p := evalParams{lod: 1, weight: 0.5, bend: 30, easing: "outsine", passes: 3}
	require.NoError(t, run(log, config.Default(), mesh, p, outputs{gltf: path, webp: pic}))
	info, err := os.Stat(pic)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	exported, err := skeleton.LoadGLTF(path, 0)
	require.NoError(t, err)
	require.Equal(t, 5, exported.RefSkeleton.Num())
	for i := 0; i < 5; i++ {
		assert.Equal(t, mesh.RefSkeleton.BoneInfo()[i].Name, exported.RefSkeleton.BoneInfo()[i].Name)
	}
	for _, e := range hook.AllEntries() {
		assert.Less(t, int(logrus.WarnLevel), int(e.Level), e.Message)
	}

	bad := p
	bad.lod = 5
	assert.Error(t, run(log, config.Default(), mesh, bad, outputs{}))
	bad = p
	bad.easing = "bounce"
	assert.Error(t, run(log, config.Default(), mesh, bad, outputs{}))
	bad = p
	bad.passes = 0
	assert.Error(t, run(log, config.Default(), mesh, bad, outputs{}))
}

func TestBendPassesMatch(t *testing.T) {
	mesh, err := randomMesh("Ares", 4)
	require.NoError(t, err)
	cfg := config.Default()
	log, _ := test.NewNullLogger()

	world := skeleton.NewWorld()
	reg := registry.New(world, cfg.RegistryOptions(log)...)
	defer reg.Destroy()

	p := evalParams{weight: 1, bend: 90, passes: 4}
	passes := make([]evalvm.Pass, p.passes)
	for i := range passes {
		h := reg.GetOrGenerateReferencePose(world.Spawn(skeleton.NewMeshComponent(mesh)))
		require.True(t, h.IsValid())
		defer h.Release()
		passes[i] = bendPass(registry.ReferencePose(h), cfg, log, p, nil)
	}

	sched := evalvm.NewScheduler(evalvm.WithWorkers(2), evalvm.WithSchedulerLogger(log))
	defer sched.Close()
	require.NoError(t, sched.Run(passes))

	first, ok := passes[0].VM.PopKeyframe()
	require.True(t, ok)
	bent := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{1, 0, 0})
	assert.InDelta(t, 1, absf(first.Pose.LocalTransforms.Rotation(1).Dot(bent)), 1e-5)
	for _, pass := range passes[1:] {
		kf, ok := pass.VM.PopKeyframe()
		require.True(t, ok)
		for b := 0; b < 4; b++ {
			assert.True(t, first.Pose.LocalTransforms.Get(b).Equals(kf.Pose.LocalTransforms.Get(b), 1e-6))
		}
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
