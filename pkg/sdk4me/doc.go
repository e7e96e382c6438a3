// Package sdk4me is a client for the 4me REST API.
//
// The client is resource agnostic: callers pass paths such as "/requests" or
// "/people/12" and get back a Response wrapping the parsed JSON. Requests that
// get no answer or a 5xx answer are retried with exponential backoff, and
// throttled requests can be made to wait for the rate limit to lift.
//
//	client, err := sdk4me.New(
//		sdk4me.WithAccessToken(token),
//		sdk4me.WithAccount("wdc"),
//	)
//	if err != nil {
//		return err
//	}
//	n, err := client.Each(ctx, "/requests", sdk4me.Params{sdk4me.P("status", "assigned")}, nil,
//		func(r sdk4me.Object) error {
//			fmt.Println(r.Text("subject"))
//			return nil
//		})
//
// Write requests upload files listed in "*_attachments" fields before the
// record itself is sent. Import and Export submit CSV jobs and can wait for
// them to finish.
package sdk4me
