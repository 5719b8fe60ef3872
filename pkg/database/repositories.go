package database

// Repositories is a single point of access to all repository types.
type Repositories struct {
	Devices     *DeviceRepository
	Submissions *SubmissionRepository
	Pets        *PetRepository
}

// NewRepositories creates all repositories sharing the given client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Devices:     NewDeviceRepository(client),
		Submissions: NewSubmissionRepository(client),
		Pets:        NewPetRepository(client),
	}
}
