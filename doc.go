/*
Package ae3gis provides primitives for provisioning GNS3 lab fleets over their telnet consoles.

Aegis is a straight forward node provisioning and fleet command orchestrator. It is targeted at
simulated lab topologies of up to around 100 nodes whose only management surface is the
console-over-telnet exposed by the GNS3 server.

Data Model

A Node is a single lab device with a console endpoint. Nodes carry no agent; every interaction is
a line-oriented console conversation.

A Role classifies a node by its name: switch, dhcp-server, firewall, or client. Switches are
transparent and never provisioned. DHCP servers are started before anyone asks them for leases.
Firewalls are addressed from the static plan and receive a composed iptables ruleset. Everything
else is a client that tries DHCP first.

A FleetConfig is the ordered collection of nodes for one lab project, stored as a single JSON
file. The Store owns that file: every save first copies the previous bytes to a rolling backup,
then replaces the original atomically.

A StaticPlan maps node and interface names to CIDR assignments with optional gateways. It is the
fallback when no DHCP strategy produces a lease and the primary source for firewall addresses.

A RunReport is the complete outcome of one provisioning or script run, one entry per targeted
node, assembled by the Dispatcher from bounded concurrent per-node workers.
*/
package ae3gis
