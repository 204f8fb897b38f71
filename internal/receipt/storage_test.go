package receipt

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			name string
			ref  string
			err  error
		)

		BeforeEach(func() {
			name = "test.jpg"
		})

		JustBeforeEach(func() {
			ref, err = storage.Save(ctx, name, []byte("test file content"))
		})

		When("saving succeeds", func() {
			It("should return the name as the reference", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(ref).To(Equal(name))
			})

			It("should save the file to disk", func() {
				Expect(filepath.Join(tmpDir, name)).To(BeAnExistingFile())
			})
		})

		When("the name tries to escape the directory", func() {
			BeforeEach(func() {
				name = "../escape.jpg"
			})

			It("returns an error", func() {
				Expect(err).To(MatchError(ErrNotFound))
				Expect(filepath.Join(filepath.Dir(tmpDir), "escape.jpg")).NotTo(BeAnExistingFile())
			})
		})

		When("the directory is read-only", func() {
			BeforeEach(func() {
				if os.Geteuid() == 0 {
					Skip("root ignores file permissions")
				}
				Expect(os.Chmod(tmpDir, 0500)).To(Succeed())
				DeferCleanup(os.Chmod, tmpDir, os.FileMode(0755))
			})

			It("returns ErrPermissionDenied", func() {
				Expect(err).To(MatchError(ErrPermissionDenied))
			})
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(filepath.Join(tmpDir, "a.png"), []byte("png"), 0644)).To(Succeed())
			})

			It("returns its content", func() {
				data, err := storage.Get(ctx, "a.png")
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal([]byte("png")))
			})
		})

		When("the file does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := storage.Get(ctx, "missing.png")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("Delete", func() {
		It("removes the file", func() {
			ref, err := storage.Save(ctx, "gone.jpg", []byte("x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete(ctx, ref)).To(Succeed())
			Expect(filepath.Join(tmpDir, "gone.jpg")).NotTo(BeAnExistingFile())
		})

		It("fails for unknown files", func() {
			Expect(storage.Delete(ctx, "nope.jpg")).To(MatchError(ErrNotFound))
		})
	})
})
