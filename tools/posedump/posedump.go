package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tanema/gween/ease"

	"github.com/mogaika/animnext/bone"
	"github.com/mogaika/animnext/config"
	"github.com/mogaika/animnext/evalvm"
	"github.com/mogaika/animnext/refpose"
	"github.com/mogaika/animnext/registry"
	"github.com/mogaika/animnext/skeleton"
	"github.com/mogaika/animnext/snapshot"
	"github.com/mogaika/animnext/transform"
	"github.com/mogaika/animnext/utils"
	"github.com/mogaika/animnext/utils/gltfutils"
)

const motd = `posedump: evaluates a sample additive program on a skeleton and prints the pose`

// randomMesh builds a chain of bones named after a seed string.
func randomMesh(seedName string, numBones int) (*skeleton.SkeletalMesh, error) {
	if numBones <= 0 {
		return nil, errors.Errorf("bad bone count %d", numBones)
	}
	names := utils.NewRandomNameGenerator(int64(utils.NameHash(seedName, 0))).RandomNames(numBones)
	bones := make([]skeleton.BoneDesc, numBones)
	for i, name := range names {
		bones[i] = skeleton.BoneDesc{Name: name, Transform: transform.FromTranslation(mgl32.Vec3{0, 0, 1})}
		if i != 0 {
			bones[i].Parent = names[i-1]
		}
	}
	lods := [][]string{names}
	if numBones > 2 {
		lods = append(lods, names[:numBones/2+1])
	}
	return skeleton.BuildMesh(seedName, seedName+"_Skeleton", bones, lods)
}

func loadMesh(yamlPath, gltfPath string, skin int, random string, numBones int) (*skeleton.SkeletalMesh, error) {
	switch {
	case yamlPath != "":
		return skeleton.LoadYAMLFile(yamlPath)
	case gltfPath != "":
		return skeleton.LoadGLTF(gltfPath, skin)
	case random != "":
		return randomMesh(random, numBones)
	}
	return nil, errors.New("no skeleton source given")
}

func exportPose(path string, kf *evalvm.Keyframe) error {
	pose := &kf.Pose.Pose
	joints := make([]gltfutils.Joint, pose.GetNumBones())
	parents := pose.GetLODBoneIndexToParentLODBoneIndexMap()
	for i := range joints {
		t := pose.LocalTransforms.Get(i)
		joints[i] = gltfutils.Joint{
			Name:        pose.GetBoneName(bone.CompactPoseIndex(i)),
			Parent:      -1,
			Translation: t.Translation,
			Rotation:    [4]float32{t.Rotation.V[0], t.Rotation.V[1], t.Rotation.V[2], t.Rotation.W},
			Scale:       t.Scale3D,
		}
		if parents[i] != bone.PACKED_NONE {
			joints[i].Parent = int(parents[i])
		}
	}

	doc := gltfutils.NewDocument()
	gltfutils.AddSkin(doc, "posedump", joints)

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create '%s'", path)
	}
	defer f.Close()
	if err := gltfutils.ExportBinary(f, doc); err != nil {
		return errors.Wrapf(err, "Can't export pose to '%s'", path)
	}
	return nil
}

type outputs struct {
	gltf string
	webp string
	spew bool
}

func writeSnapshot(path string, kf *evalvm.Keyframe) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Can't create '%s'", path)
	}
	defer f.Close()
	return snapshot.EncodeWebP(f, snapshot.Render(&kf.Pose.Pose))
}

type evalParams struct {
	lod    int
	weight float64
	bend   float64
	easing string
	// passes is the number of components evaluated in parallel, the first
	// one is printed
	passes int
}

// bendPass builds the sample program for one component: the reference pose
// with every bone bent around x by an eased additive.
func bendPass(rp *refpose.ReferencePose, cfg *config.Config, log logrus.FieldLogger, p evalParams, easeFn ease.TweenFunc) evalvm.Pass {
	vm := evalvm.New(rp, p.lod, cfg.VMOptions(log)...)

	additive := vm.MakeReferenceKeyframe(true)
	q := mgl32.QuatRotate(mgl32.DegToRad(float32(p.bend)), mgl32.Vec3{1, 0, 0})
	for i := 0; i < additive.Pose.GetNumBones(); i++ {
		additive.Pose.LocalTransforms.SetRotation(i, q)
	}
	additive.Curves.Set("Bend", float32(p.weight))

	alpha := evalvm.CurveAlpha("Bend", evalvm.INPUT_B)
	alpha.Value = float32(p.weight)
	alpha.Easing = easeFn
	return evalvm.Pass{VM: vm, Program: evalvm.Program{
		evalvm.PushReferenceKeyframeTask{},
		evalvm.PushKeyframeTask{Keyframe: additive},
		evalvm.ApplyAdditiveKeyframeTask{Alpha: alpha},
		evalvm.NormalizeKeyframeRotationsTask{},
	}}
}

func run(log *logrus.Logger, cfg *config.Config, mesh *skeleton.SkeletalMesh, p evalParams, out outputs) error {
	if p.passes <= 0 {
		return errors.Errorf("bad pass count %d", p.passes)
	}
	easeFn, err := evalvm.EasingByName(p.easing)
	if err != nil {
		return err
	}

	world := skeleton.NewWorld()
	reg := registry.New(world, cfg.RegistryOptions(log)...)
	defer reg.Destroy()

	passes := make([]evalvm.Pass, p.passes)
	for i := range passes {
		h := reg.GetOrGenerateReferencePose(world.Spawn(skeleton.NewMeshComponent(mesh)))
		if !h.IsValid() {
			return errors.Errorf("Can't generate reference pose for mesh %q", mesh.Name)
		}
		defer h.Release()
		rp := registry.ReferencePose(h)
		if p.lod < 0 || p.lod >= rp.GetNumLODs() {
			return errors.Errorf("lod %d out of range [0, %d)", p.lod, rp.GetNumLODs())
		}
		passes[i] = bendPass(rp, cfg, log, p, easeFn)
	}
	log.WithFields(logrus.Fields{"mesh": mesh.Name, "lod": p.lod, "passes": len(passes)}).Info("Reference poses ready")

	sched := evalvm.NewScheduler(cfg.SchedulerOptions(log)...)
	defer sched.Close()
	if err := sched.Run(passes); err != nil {
		return errors.Wrap(err, "Evaluation failed")
	}

	kf, ok := passes[0].VM.PopKeyframe()
	if !ok {
		return errors.New("program left no keyframe")
	}
	fmt.Print(kf.Pose.String())
	if out.spew {
		fmt.Println(kf.Pose.Dump())
		utils.Dump(&kf.Curves)
	}
	utils.LogDump(log, reg.Stats())

	if out.gltf != "" {
		if err := exportPose(out.gltf, kf); err != nil {
			return err
		}
		log.WithField("path", out.gltf).Info("Pose exported")
	}
	if out.webp != "" {
		if err := writeSnapshot(out.webp, kf); err != nil {
			return err
		}
		log.WithField("path", out.webp).Info("Snapshot written")
	}
	return nil
}

func main() {
	var yamlPath, gltfPath, configPath, random string
	var skin, numBones int
	var p evalParams
	var out outputs
	flag.StringVar(&yamlPath, "skeleton", "", "Path to yaml skeleton description")
	flag.StringVar(&gltfPath, "gltf", "", "Path to gltf/glb file with a skin")
	flag.IntVar(&skin, "skin", 0, "Skin index inside -gltf file")
	flag.StringVar(&random, "random", "", "Generate a bone chain seeded by this name")
	flag.IntVar(&numBones, "bones", 8, "Bone count of -random chain")
	flag.StringVar(&configPath, "config", "", "Path to yaml config")
	flag.IntVar(&p.lod, "lod", 0, "LOD to evaluate")
	flag.Float64Var(&p.weight, "weight", 0.5, "Weight of the additive bend")
	flag.Float64Var(&p.bend, "bend", 30, "Additive bend per bone, degrees")
	flag.StringVar(&p.easing, "easing", "linear", "Easing of the additive weight (linear, outcubic, inoutsine...)")
	flag.IntVar(&p.passes, "passes", 1, "Components evaluated in parallel, the first one is printed")
	flag.StringVar(&out.gltf, "export", "", "Write resulting pose as glb skin")
	flag.StringVar(&out.webp, "webp", "", "Write resulting pose picture as webp")
	flag.BoolVar(&out.spew, "spew", false, "Dump raw pose storage")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			logrus.Fatal(err)
		}
	}
	log := cfg.NewLogger()

	mesh, err := loadMesh(yamlPath, gltfPath, skin, random, numBones)
	if err != nil {
		fmt.Fprintln(os.Stderr, motd)
		flag.PrintDefaults()
		log.Fatal(err)
	}

	if err := run(log, cfg, mesh, p, out); err != nil {
		log.Fatal(err)
	}
}
