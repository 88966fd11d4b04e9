// Package image provides the identity of container images.
//
// A Reference is a name and tag pair. References are plain values: two
// references are equal when their names and tags are equal, so they can be
// compared with == or used as map keys.
//
// Names are kept in their familiar short form, which means "redis",
// "redis:latest" and "docker.io/library/redis:latest" all parse to the same
// Reference:
//
//	ref, err := image.Parse("redis:7")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(ref.Name, ref.Tag) // redis 7
//
// Unique returns a throwaway reference made of two random identifiers. It is
// used to tag images built for a single test run so that concurrent builds
// never collide.
package image
