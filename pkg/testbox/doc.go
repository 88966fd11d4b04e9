// Package testbox starts throwaway containers and hands them back once they
// are ready to accept traffic.
//
// A Builder collects the request: image, environment, command, exposed
// ports, mounts and the wait strategy. Start pulls the image when it is not
// present locally, publishes every exposed port on a free host port, creates
// and starts the container, then polls the wait strategy until it reports
// ready or the startup timeout elapses. The returned Container knows where
// each port was published and is stopped and removed with Stop.
//
//	eng, err := engine.NewDocker()
//	if err != nil {
//		return err
//	}
//	defer eng.Close()
//
//	redis, err := testbox.New(eng, image.MustParse("redis:7")).
//		WithExposedPorts(ports.TCP(6379)).
//		WithWaitStrategy(wait.ForLog("Ready to accept connections")).
//		Start(ctx)
//	if err != nil {
//		return err
//	}
//	defer redis.Stop(ctx)
//
//	port, _ := redis.MappedPort(ports.TCP(6379))
//	addr := net.JoinHostPort(redis.Host(), strconv.Itoa(port.Number))
//
// A Start that fails after the container was created returns a *StartError.
// The container is left in place for inspection until StartError.Cleanup
// removes it:
//
//	var startErr *testbox.StartError
//	if errors.As(err, &startErr) {
//		_ = startErr.Cleanup(ctx)
//	}
//
// Builders are safe for concurrent use. Start works on a copy of the
// request, so one Builder can start any number of identical containers.
//
// ImageBuilder builds an image from a build context under a generated
// reference, for tests that need a custom image.
package testbox
