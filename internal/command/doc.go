// Package command maps robot command names to MQTT payloads and publishes them.
//
// The Table is fixed at construction. A Publisher looks a name up, hands the
// payload to a Gate (the session supervisor) and reports the outcome to its
// Recorder. Delivery is best effort: when the gate refuses, the message is
// dropped, logged and counted, and Invoke still returns nil.
//
//	pub := command.NewPublisher(command.DefaultTable(), supervisor,
//	    command.WithTopic(cfg.MQTT.Topic),
//	    command.WithRecorder(command.Recorders{auditRepo, collectors}),
//	)
//	_ = pub.Invoke(ctx, command.GoForward)
package command
