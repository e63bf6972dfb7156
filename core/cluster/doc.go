// Package cluster balances guilds over a pool of audio nodes.
//
// A [Cluster] owns its nodes, connects them independently and routes the
// platform's voice events to the node that should serve a guild.
//
// # Routing
//
// [Cluster.GetNode] keeps guilds where they are: a node that already hosts a
// player for the guild wins, then a node that already holds voice data for
// it. New guilds go to the least loaded connected node the [Filter]
// accepts, load being the node's reported system load per core. Nodes that
// have not reported stats yet count as idle.
//
//	c, err := cluster.New(cluster.Options{
//	    Send:  gatewaySend,
//	    Nodes: []node.Options{{Host: "lava-1:2333", Password: "pw", UserID: botID}},
//	})
//	if err := c.Connect(ctx); err != nil {
//	    // some nodes are down; the rest are usable
//	}
//	_, err = c.VoiceServerUpdate(ctx, server)
//
// # Filters
//
// [TagFilter] restricts guilds to tagged nodes. [RendezvousFilter] pins
// every guild to its k highest random weight nodes (blake2b), so guilds stay
// on the same small set of nodes while the node list is stable.
//
// # Events
//
// Events of every node are republished by the cluster; [node.Event.Node]
// tells them apart.
package cluster
