package keypoints

import (
	"image"
	"math/rand"
	"testing"

	"go.viam.com/test"

	"go.viam.com/vo/utils"
)

func randomGray(w, h int, seed int64) *image.Gray {
	r := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.Intn(256))
	}
	return img
}

func TestGenerateSamplePairs(t *testing.T) {
	sp := GenerateSamplePairs(256, 48, 3)
	test.That(t, sp.N, test.ShouldEqual, 256)
	test.That(t, sp.P0, test.ShouldHaveLength, 256)
	for i := 0; i < sp.N; i++ {
		for _, p := range []image.Point{sp.P0[i], sp.P1[i]} {
			test.That(t, absInt(p.X), test.ShouldBeLessThanOrEqualTo, 23)
			test.That(t, absInt(p.Y), test.ShouldBeLessThanOrEqualTo, 23)
		}
	}
	test.That(t, GenerateSamplePairs(256, 48, 3), test.ShouldResemble, sp)
}

func TestBRIEFDescriptors(t *testing.T) {
	cfg := DefaultBRIEFConfig()
	sp := GenerateSamplePairs(cfg.N, cfg.PatchSize, cfg.Seed)
	img := randomGray(200, 150, 1)

	kps := KeyPoints{{100, 75}, {60, 40}, {2, 2}}
	descs := ComputeBRIEFDescriptors(img, sp, kps, cfg.PatchSize)
	test.That(t, descs, test.ShouldHaveLength, 3)
	test.That(t, descs[0], test.ShouldHaveLength, 8)

	// the border keypoint keeps an empty descriptor
	test.That(t, descs[2], test.ShouldResemble, Descriptor(make([]uint64, 8)))

	// distinct patches give distant descriptors
	d, err := utils.HammingDistance(descs[0], descs[1])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldBeGreaterThan, 100)

	// a translated image gives identical descriptors at the translated keypoints
	shifted := image.NewGray(img.Bounds())
	for y := 0; y < 150; y++ {
		for x := 0; x < 200; x++ {
			if x >= 5 && y >= 3 {
				shifted.SetGray(x, y, img.GrayAt(x-5, y-3))
			}
		}
	}
	moved := ComputeBRIEFDescriptors(shifted, sp, KeyPoints{{105, 78}}, cfg.PatchSize)
	test.That(t, moved[0], test.ShouldResemble, descs[0])
}

func TestFASTBRIEFExtractor(t *testing.T) {
	_, err := NewFASTBRIEF(FASTBRIEFConfig{FAST: DefaultFASTConfig(), Grid: DefaultGridConfig(), BRIEF: BRIEFConfig{N: 100}})
	test.That(t, err, test.ShouldNotBeNil)

	fb, err := NewFASTBRIEF(DefaultFASTBRIEFConfig())
	test.That(t, err, test.ShouldBeNil)

	img := randomGray(320, 240, 2)
	kps, err := fb.Detect(img, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(kps), test.ShouldBeGreaterThan, 0)
	test.That(t, len(kps), test.ShouldBeLessThanOrEqualTo, 750)

	descs, err := fb.Describe(img, kps)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, descs, test.ShouldHaveLength, len(kps))

	empty, err := fb.Detect(img, image.NewGray(img.Bounds()))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty, test.ShouldBeEmpty)

	_, err = fb.Describe(nil, kps)
	test.That(t, err, test.ShouldNotBeNil)
}
