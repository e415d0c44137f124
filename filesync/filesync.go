// Package filesync moves whole objects between a bucket and the local
// filesystem. Content is streamed chunk by chunk in both directions, so a
// multi-gigabyte object never needs to be held in memory.
//
// The two error worlds stay distinct: failures from the local filesystem
// come back as the usual os error types (*os.PathError and friends), while
// failures from the blob store come back as *store.RemoteError or one of the
// bucket sentinels. Callers can use errors.As to tell which side broke.
package filesync

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docstream/gridbucket/bucket"
	"github.com/docstream/gridbucket/util"
)

// DownloadTo copies the object called name into a newly created local file
// at localPath, and returns the identifier of the record it downloaded. The
// content checksum is verified as the bytes stream past.
//
// If anything fails after the local file has been created, the partial file
// is removed before the error is returned; DownloadTo never leaves a
// truncated file behind.
func DownloadTo(ctx context.Context, b *bucket.Bucket, name, localPath string) (primitive.ObjectID, error) {
	r, err := b.OpenRead(ctx, name)
	if err != nil {
		return primitive.NilObjectID, err
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return primitive.NilObjectID, err
	}
	hw := util.NewMD5Writer(f)
	_, err = io.Copy(hw, r)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err == nil && !hw.Check(r.Stat().MD5) {
		err = fmt.Errorf("%w: %s: content checksum mismatch", bucket.ErrCorrupt, name)
	}
	if err != nil {
		os.Remove(localPath)
		return primitive.NilObjectID, err
	}
	return r.Stat().ID, nil
}

// UploadFrom stores the local file at localPath under name and returns the
// identifier of the new record. If the upload fails partway through nothing
// is published; the name keeps resolving to whatever it resolved to before.
func UploadFrom(ctx context.Context, b *bucket.Bucket, name, localPath string) (primitive.ObjectID, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return primitive.NilObjectID, err
	}
	defer f.Close()

	w, err := b.OpenWrite(ctx, name)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Abort()
		return primitive.NilObjectID, err
	}
	if err := w.Close(); err != nil {
		return primitive.NilObjectID, err
	}
	return w.ID(), nil
}
