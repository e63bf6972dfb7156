package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/codewandler/lava-go/core/node"
	"github.com/codewandler/lava-go/core/protocol"
	"github.com/codewandler/lava-go/internal/observe"
)

type Options struct {
	Log *slog.Logger
	// Filter restricts the nodes new guilds may be placed on. Defaults to
	// AcceptAll.
	Filter Filter
	// Send is used by nodes whose options carry no Send of their own.
	Send  node.SendFunc
	Nodes []node.Options

	Metrics ClusterMetrics
	// NodeMetrics is used by nodes whose options carry no Metrics.
	NodeMetrics node.NodeMetrics
}

type member struct {
	node *node.Node
	sub  node.Subscription
}

type Cluster struct {
	log         *slog.Logger
	send        node.SendFunc
	metrics     ClusterMetrics
	nodeMetrics node.NodeMetrics

	mu      sync.RWMutex
	filter  Filter
	members []member

	events observe.Hub[node.Event]
}

func New(opts Options) (*Cluster, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	filter := opts.Filter
	if filter == nil {
		filter = AcceptAll
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NopClusterMetrics()
	}

	c := &Cluster{
		log:         log,
		send:        opts.Send,
		metrics:     metrics,
		nodeMetrics: opts.NodeMetrics,
		filter:      filter,
	}
	if _, err := c.Spawn(opts.Nodes...); err != nil {
		return nil, err
	}
	return c, nil
}

// SetFilter replaces the filter for subsequent placements.
func (c *Cluster) SetFilter(f Filter) {
	if f == nil {
		f = AcceptAll
	}
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// Spawn creates nodes and adds them to the cluster. Nothing is added if one
// of them cannot be created.
func (c *Cluster) Spawn(opts ...node.Options) ([]*node.Node, error) {
	nodes := make([]*node.Node, 0, len(opts))
	for _, o := range opts {
		if o.Log == nil {
			o.Log = c.log
		}
		if o.Send == nil {
			o.Send = c.send
		}
		if o.Metrics == nil {
			o.Metrics = c.nodeMetrics
		}
		n, err := node.New(o)
		if err != nil {
			return nil, fmt.Errorf("spawn node %q: %w", o.ID, err)
		}
		nodes = append(nodes, n)
	}

	c.mu.Lock()
	for _, n := range nodes {
		c.members = append(c.members, member{node: n, sub: n.Subscribe(c.republish)})
	}
	c.mu.Unlock()

	for _, n := range nodes {
		c.log.Debug("node spawned", slog.String("node", n.ID()), slog.Any("tags", n.Tags()))
	}
	return nodes, nil
}

func (c *Cluster) republish(e node.Event) {
	c.metrics.NodeEvent(e.Node.ID(), e.Type.String())
	if e.Type == node.EventOpen || e.Type == node.EventClose {
		c.metrics.NodesConnected(len(c.Connected()))
	}
	c.events.Publish(e)
}

// Subscribe registers fn for the events of every node in the cluster.
func (c *Cluster) Subscribe(fn func(node.Event)) node.Subscription {
	return c.events.Subscribe(fn)
}

// Nodes returns all nodes in spawn order.
func (c *Cluster) Nodes() []*node.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*node.Node, len(c.members))
	for i, m := range c.members {
		out[i] = m.node
	}
	return out
}

func (c *Cluster) Node(id string) (*node.Node, bool) {
	for _, n := range c.Nodes() {
		if n.ID() == id {
			return n, true
		}
	}
	return nil, false
}

func (c *Cluster) NodeIDs() []string {
	nodes := c.Nodes()
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids
}

// Connected returns the connected nodes in spawn order.
func (c *Cluster) Connected() []*node.Node {
	return slices.DeleteFunc(c.Nodes(), func(n *node.Node) bool { return !n.Connected() })
}

// ConnectedIDs is NodeIDs restricted to connected nodes.
func (c *Cluster) ConnectedIDs() []string {
	nodes := c.Connected()
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids
}

// Connect connects every node concurrently. A failing node neither blocks
// nor fails the others; the returned error joins all failures.
func (c *Cluster) Connect(ctx context.Context) error {
	nodes := c.Nodes()
	errs := make([]error, len(nodes))

	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := n.Connect(ctx); err != nil {
				c.log.Warn("node connect failed", slog.String("node", n.ID()), slog.Any("error", err))
				errs[i] = fmt.Errorf("node %s: %w", n.ID(), err)
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Sort returns the connected nodes ordered by ascending load. Nodes without
// stats count as load 0.
func (c *Cluster) Sort() []*node.Node {
	nodes := c.Connected()
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Stats().Load() < nodes[j].Stats().Load()
	})
	return nodes
}

// GetNode returns the node that serves guildID.
func (c *Cluster) GetNode(guildID string) (*node.Node, error) {
	nodes := c.Nodes()
	for _, n := range nodes {
		if n.Players().Has(guildID) {
			c.metrics.Routed("affinity")
			return n, nil
		}
	}
	for _, n := range nodes {
		if n.Connected() && n.HasVoice(guildID) {
			c.metrics.Routed("affinity")
			return n, nil
		}
	}

	c.mu.RLock()
	filter := c.filter
	c.mu.RUnlock()

	for _, n := range c.Sort() {
		if filter(n, guildID) {
			c.metrics.Routed("selected")
			return n, nil
		}
	}
	c.metrics.Routed("no_node")
	return nil, ErrNoNode
}

// Has reports whether any node hosts a player for guildID.
func (c *Cluster) Has(guildID string) bool {
	for _, n := range c.Nodes() {
		if n.Players().Has(guildID) {
			return true
		}
	}
	return false
}

// Get returns the guild's player on the node GetNode picks, creating it.
func (c *Cluster) Get(guildID string) (*node.Player, error) {
	n, err := c.GetNode(guildID)
	if err != nil {
		return nil, err
	}
	return n.Players().Get(guildID), nil
}

func (c *Cluster) VoiceStateUpdate(ctx context.Context, state protocol.VoiceState) (bool, error) {
	n, err := c.GetNode(state.GuildID)
	if err != nil {
		return false, err
	}
	return n.VoiceStateUpdate(ctx, state)
}

func (c *Cluster) VoiceServerUpdate(ctx context.Context, server protocol.VoiceServer) (bool, error) {
	n, err := c.GetNode(server.GuildID)
	if err != nil {
		return false, err
	}
	return n.VoiceServerUpdate(ctx, server)
}

// RemoveNode drops n from the cluster without closing it.
func (c *Cluster) RemoveNode(n *node.Node) bool {
	c.mu.Lock()
	idx := slices.IndexFunc(c.members, func(m member) bool { return m.node == n })
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	m := c.members[idx]
	c.members = slices.Delete(c.members, idx, idx+1)
	c.mu.Unlock()

	_ = m.sub.Unsubscribe()
	return true
}

// DestroyNode destroys n and removes it from the cluster.
func (c *Cluster) DestroyNode(ctx context.Context, n *node.Node, code int, reason string) error {
	err := n.Destroy(ctx, code, reason)
	c.RemoveNode(n)
	return err
}

// Destroy destroys every node concurrently and empties the cluster.
func (c *Cluster) Destroy(ctx context.Context, code int, reason string) error {
	nodes := c.Nodes()
	errs := make([]error, len(nodes))

	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.DestroyNode(ctx, n, code, reason); err != nil {
				errs[i] = fmt.Errorf("node %s: %w", n.ID(), err)
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}
