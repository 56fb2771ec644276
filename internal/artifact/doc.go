// Package artifact stores generated images on local disk, one file per
// artifact id in a flat directory, and serves them back by id.
package artifact
