// Command authclient calls an API that issues access/refresh token pairs.
// It logs in, sends authenticated requests that transparently refresh the
// credential, and reports on the stored session.
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:], newStreams()))
}
