// Package jibgateway is the sandbox-side client for the gateway's HTTP API.
// Agents inside the sandbox hold no GitHub credentials; every push, PR
// mutation, gh command and fork goes through a Client.
//
// Usage:
//
//	gw, err := jibgateway.New("http://jib-gateway:9847", jibgateway.WithSecretFile("/run/secrets/gateway"))
//	res, err := gw.Push(ctx, jibgateway.PushRequest{
//	    RepoPath: "/workspace/app",
//	    Remote:   "origin",
//	    Refspec:  "jib/fix-login",
//	})
//	var blocked *jibgateway.BlockedError
//	if errors.As(err, &blocked) {
//	    fmt.Println(blocked.Message)
//	}
package jibgateway
