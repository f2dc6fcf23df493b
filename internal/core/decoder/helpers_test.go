package decoder

// makeDNSFrame builds Ethernet + IPv4 + UDP(5000 -> 53) + DNS header + 4 bytes of body.
func makeDNSFrame() []byte {
	packet := make([]byte, 58)

	// Ethernet header (14 bytes)
	// Dst MAC: 00:11:22:33:44:55
	packet[0], packet[1], packet[2] = 0x00, 0x11, 0x22
	packet[3], packet[4], packet[5] = 0x33, 0x44, 0x55
	// Src MAC: AA:BB:CC:DD:EE:FF
	packet[6], packet[7], packet[8] = 0xAA, 0xBB, 0xCC
	packet[9], packet[10], packet[11] = 0xDD, 0xEE, 0xFF
	// EtherType: IPv4 (0x0800)
	packet[12], packet[13] = 0x08, 0x00

	// IPv4 header (20 bytes)
	packet[14] = 0x45                   // Version 4, IHL 5
	packet[16], packet[17] = 0x00, 0x2C // Total Length: 44 bytes
	packet[22] = 0x40                   // TTL: 64
	packet[23] = 0x11                   // Protocol: UDP (17)
	packet[24], packet[25] = 0xBE, 0xEF // Checksum (not calculated)
	// Src IP: 192.168.1.1
	packet[26], packet[27], packet[28], packet[29] = 192, 168, 1, 1
	// Dst IP: 1.1.1.1
	packet[30], packet[31], packet[32], packet[33] = 1, 1, 1, 1

	// UDP header (8 bytes)
	packet[34], packet[35] = 0x13, 0x88 // Src Port: 5000
	packet[36], packet[37] = 0x00, 0x35 // Dst Port: 53
	packet[38], packet[39] = 0x00, 0x18 // Length: 24 bytes
	packet[40], packet[41] = 0xCA, 0xFE // Checksum (not calculated)

	// DNS header (12 bytes)
	packet[42], packet[43] = 0x12, 0x34 // ID
	packet[44], packet[45] = 0x81, 0x80 // QR=1 RD=1 RA=1
	packet[46], packet[47] = 0x00, 0x01 // QDCOUNT
	packet[48], packet[49] = 0x00, 0x01 // ANCOUNT
	packet[50], packet[51] = 0x00, 0x00 // NSCOUNT
	packet[52], packet[53] = 0x00, 0x00 // ARCOUNT

	// Body
	packet[54], packet[55], packet[56], packet[57] = 0xDE, 0xAD, 0xBE, 0xEF

	return packet
}
